package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage account memories used in prompt composition",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		return store.AddMemory(ctx, flagAccount, strings.Join(args, " "))
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		memories, err := store.GetMemories(cmd.Context(), flagAccount)
		if err != nil {
			return err
		}
		for _, m := range memories {
			fmt.Printf("%d\t%s\n", m.ID, m.Content)
		}
		return nil
	},
}

var memoryRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid memory id %q", args[0])
		}

		_, store, eng, err := setup(false)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		return store.DeleteMemory(cmd.Context(), id)
	},
}

func init() {
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryRmCmd)
}
