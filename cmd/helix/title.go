package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var titleCmd = &cobra.Command{
	Use:   "title <message>",
	Short: "Derive a conversation title from a first message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, eng, err := setup(true)
		if err != nil {
			return err
		}
		defer store.Close()
		defer eng.Close()

		fmt.Println(eng.TitleFor(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}
