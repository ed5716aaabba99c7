// Package db is the persistence collaborator for the generation engine:
// token balances, memories, notebooks, and chat transcripts in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Memory is one stored user memory.
type Memory struct {
	ID        int64
	AccountID string
	Content   string
	CreatedAt time.Time
}

// Notebook is a user document the engine can attach to prompts.
type Notebook struct {
	ID        string
	AccountID string
	Title     string
	Content   string
	UpdatedAt time.Time
}

// Chat is conversation metadata; messages live in chat_messages.
type Chat struct {
	ID        string
	AccountID string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one transcript entry.
type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store wraps the single shared SQLite connection.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- accounts ---

// EnsureAccount creates the account with the initial token grant if it
// does not exist yet. Existing balances are never touched.
func (s *Store) EnsureAccount(ctx context.Context, accountID string, initialTokens int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (id, tokens) VALUES (?, ?)`,
		accountID, initialTokens,
	)
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}
	return nil
}

// GetBalance returns the current token balance for an account.
func (s *Store) GetBalance(ctx context.Context, accountID string) (int, error) {
	var tokens int
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens FROM accounts WHERE id = ?`, accountID,
	).Scan(&tokens)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", accountID, err)
	}
	return tokens, nil
}

// SetBalance persists a new token balance. Negative values are clamped to
// zero at the SQL level so the floor invariant holds even on a bad write.
func (s *Store) SetBalance(ctx context.Context, accountID string, tokens int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET tokens = MAX(0, ?) WHERE id = ?`,
		tokens, accountID,
	)
	if err != nil {
		return fmt.Errorf("set balance for %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set balance: unknown account %s", accountID)
	}
	return nil
}

// --- memories ---

// AddMemory stores a new memory for an account.
func (s *Store) AddMemory(ctx context.Context, accountID, content string) error {
	if content == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (account_id, content) VALUES (?, ?)`,
		accountID, content,
	)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	return nil
}

// DeleteMemory removes a memory by id.
func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	return err
}

// GetMemories returns an account's memories newest-first.
func (s *Store) GetMemories(ctx context.Context, accountID string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, content, created_at FROM memories WHERE account_id = ? ORDER BY id DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("get memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// --- notebooks ---

// SaveNotebook upserts a notebook and bumps its updated_at.
func (s *Store) SaveNotebook(ctx context.Context, nb Notebook) error {
	if nb.ID == "" {
		nb.ID = uuid.New().String()
	}
	if nb.Title == "" {
		nb.Title = "Untitled"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notebooks (id, account_id, title, content, updated_at)
		 VALUES (?, ?, ?, ?, unixepoch())
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content, updated_at = unixepoch()`,
		nb.ID, nb.AccountID, nb.Title, nb.Content,
	)
	if err != nil {
		return fmt.Errorf("save notebook: %w", err)
	}
	return nil
}

// GetNotebook loads a notebook by id.
func (s *Store) GetNotebook(ctx context.Context, id string) (*Notebook, error) {
	var nb Notebook
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, title, content, updated_at FROM notebooks WHERE id = ?`, id,
	).Scan(&nb.ID, &nb.AccountID, &nb.Title, &nb.Content, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get notebook %s: %w", id, err)
	}
	nb.UpdatedAt = time.Unix(updatedAt, 0)
	return &nb, nil
}

// ListNotebooks returns an account's notebooks, most recently updated first.
func (s *Store) ListNotebooks(ctx context.Context, accountID string) ([]Notebook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, title, content, updated_at FROM notebooks
		 WHERE account_id = ? ORDER BY updated_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []Notebook
	for rows.Next() {
		var nb Notebook
		var updatedAt int64
		if err := rows.Scan(&nb.ID, &nb.AccountID, &nb.Title, &nb.Content, &updatedAt); err != nil {
			return nil, err
		}
		nb.UpdatedAt = time.Unix(updatedAt, 0)
		notebooks = append(notebooks, nb)
	}
	return notebooks, rows.Err()
}

// --- chats ---

// CreateChat opens a new conversation and returns its id.
func (s *Store) CreateChat(ctx context.Context, accountID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, account_id) VALUES (?, ?)`,
		id, accountID,
	)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

// SetChatTitle renames a conversation.
func (s *Store) SetChatTitle(ctx context.Context, chatID, title string) error {
	if title == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = unixepoch() WHERE id = ?`,
		title, chatID,
	)
	return err
}

// AppendMessage adds a transcript entry. Empty messages are silently
// skipped; they create ghost records that confuse history rendering.
func (s *Store) AppendMessage(ctx context.Context, chatID, role, content string) error {
	if content == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, chat_id, role, content) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), chatID, role, content,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE chats SET updated_at = unixepoch() WHERE id = ?`, chatID,
	)
	return err
}

// GetMessages returns a conversation's transcript in insertion order.
func (s *Store) GetMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM chat_messages
		 WHERE chat_id = ? ORDER BY created_at, rowid`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListChats returns an account's conversations, most recent first.
func (s *Store) ListChats(ctx context.Context, accountID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, title, created_at, updated_at FROM chats
		 WHERE account_id = ? ORDER BY updated_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
