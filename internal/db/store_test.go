package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountBalance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, "alice@example.com", 5000))

	balance, err := store.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, 5000, balance)

	// EnsureAccount is idempotent and never resets an existing balance
	require.NoError(t, store.SetBalance(ctx, "alice@example.com", 42))
	require.NoError(t, store.EnsureAccount(ctx, "alice@example.com", 5000))
	balance, err = store.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, 42, balance)
}

func TestSetBalanceFloorsAtZero(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, "a", 10))
	require.NoError(t, store.SetBalance(ctx, "a", -7))

	balance, err := store.GetBalance(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 0, balance)
}

func TestSetBalanceUnknownAccount(t *testing.T) {
	store := openTestStore(t)
	err := store.SetBalance(context.Background(), "nobody", 10)
	require.Error(t, err)
}

func TestMemoriesNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, "a", 0))
	require.NoError(t, store.AddMemory(ctx, "a", "first"))
	require.NoError(t, store.AddMemory(ctx, "a", "second"))
	require.NoError(t, store.AddMemory(ctx, "a", "third"))

	memories, err := store.GetMemories(ctx, "a")
	require.NoError(t, err)
	require.Len(t, memories, 3)
	require.Equal(t, "third", memories[0].Content)
	require.Equal(t, "first", memories[2].Content)

	require.NoError(t, store.DeleteMemory(ctx, memories[0].ID))
	memories, err = store.GetMemories(ctx, "a")
	require.NoError(t, err)
	require.Len(t, memories, 2)
	require.Equal(t, "second", memories[0].Content)
}

func TestNotebookUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, "a", 0))
	nb := Notebook{ID: "nb-1", AccountID: "a", Title: "Notes", Content: "hello"}
	require.NoError(t, store.SaveNotebook(ctx, nb))

	nb.Content = "hello world"
	require.NoError(t, store.SaveNotebook(ctx, nb))

	got, err := store.GetNotebook(ctx, "nb-1")
	require.NoError(t, err)
	require.Equal(t, "hello world", got.Content)
	require.Equal(t, "Notes", got.Title)

	list, err := store.ListNotebooks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestChatTranscript(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, "a", 0))
	chatID, err := store.CreateChat(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, chatID, "user", "hello"))
	require.NoError(t, store.AppendMessage(ctx, chatID, "assistant", "hi there"))
	require.NoError(t, store.AppendMessage(ctx, chatID, "assistant", "")) // skipped

	messages, err := store.GetMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "hi there", messages[1].Content)

	require.NoError(t, store.SetChatTitle(ctx, chatID, "greetings"))
	chats, err := store.ListChats(ctx, "a")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "greetings", chats[0].Title)
}
