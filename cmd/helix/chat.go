package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixlabs/helix/internal/engine"
	"github.com/helixlabs/helix/internal/engine/ai"
)

var (
	flagAttach string
	flagResume string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Starts an interactive chat. Each reply streams to stdout and is
charged against the account's token balance on completion. The chat is
titled automatically after the first message.`,
	RunE: runChat,
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List the account's conversations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		chats, err := store.ListChats(cmd.Context(), flagAccount)
		if err != nil {
			return err
		}
		for _, c := range chats {
			fmt.Printf("%s\t%s\t%s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&flagAttach, "attach", "", "notebook id to attach to the prompt")
	chatCmd.Flags().StringVar(&flagResume, "resume", "", "chat id to continue")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, store, eng, err := setup(true)
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	ctx := cmd.Context()
	if err := store.EnsureAccount(ctx, flagAccount, cfg.InitialTokens); err != nil {
		return err
	}
	var history []ai.ChatMessage
	chatID := flagResume
	if chatID == "" {
		chatID, err = store.CreateChat(ctx, flagAccount)
		if err != nil {
			return err
		}
	} else {
		messages, err := store.GetMessages(ctx, chatID)
		if err != nil {
			return err
		}
		for _, m := range messages {
			history = append(history, ai.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	surface := "chat:" + chatID

	balance, err := eng.Ledger().Balance(ctx, flagAccount)
	if err != nil {
		return err
	}
	fmt.Printf("helix chat — account %s, balance %d tokens. /quit to exit.\n", flagAccount, balance)

	first := len(history) == 0

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		done := make(chan struct{})
		var reply strings.Builder
		completed := false

		_, err := eng.Generate(ctx, engine.Request{
			Surface:      surface,
			AccountID:    flagAccount,
			ChatID:       chatID,
			ModelKey:     flagModel,
			BasePrompt:   cfg.Prompts.Chat,
			UserMessage:  line,
			History:      history,
			AttachmentID: flagAttach,
			UseMemories:  true,
		}, engine.SurfaceCallbacks{
			OnDelta: func(d string) {
				fmt.Print(d)
				reply.WriteString(d)
			},
			OnFinalize: func(string) {
				completed = true
				fmt.Println()
			},
			OnBalance: func(b int) {
				fmt.Printf("[balance: %d]\n", b)
				close(done)
			},
			OnError: func(kind ai.ErrorKind, detail string) {
				fmt.Printf("\n[%s error] %s\n", kind, detail)
				close(done)
			},
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		<-done

		if completed {
			history = append(history,
				ai.ChatMessage{Role: "user", Content: line},
				ai.ChatMessage{Role: "assistant", Content: reply.String()},
			)
		}
		if first {
			first = false
			eng.AutoTitle(ctx, chatID, line)
		}
	}
	return scanner.Err()
}
