package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixlabs/helix/internal/db"
)

var notebookCmd = &cobra.Command{
	Use:   "notebook",
	Short: "Manage notebooks attachable to chat prompts",
}

var flagNotebookID string

var notebookSaveCmd = &cobra.Command{
	Use:   "save <title>",
	Short: "Save a notebook from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		cfg, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		ctx := cmd.Context()
		if err := store.EnsureAccount(ctx, flagAccount, cfg.InitialTokens); err != nil {
			return err
		}

		nb := db.Notebook{
			ID:        flagNotebookID,
			AccountID: flagAccount,
			Title:     args[0],
			Content:   string(content),
		}
		return store.SaveNotebook(ctx, nb)
	},
}

var notebookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebooks, most recently updated first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		notebooks, err := store.ListNotebooks(cmd.Context(), flagAccount)
		if err != nil {
			return err
		}
		for _, nb := range notebooks {
			fmt.Printf("%s\t%s\n", nb.ID, nb.Title)
		}
		return nil
	},
}

var notebookShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a notebook's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		nb, err := store.GetNotebook(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(nb.Content)
		return nil
	},
}

func init() {
	notebookSaveCmd.Flags().StringVar(&flagNotebookID, "id", "", "notebook id to overwrite (new when empty)")
	notebookCmd.AddCommand(notebookSaveCmd)
	notebookCmd.AddCommand(notebookListCmd)
	notebookCmd.AddCommand(notebookShowCmd)
}
