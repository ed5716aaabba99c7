package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixlabs/helix/internal/engine"
	"github.com/helixlabs/helix/internal/engine/ai"
)

var flagInstruction string

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Correct text from stdin and print the result",
	Long: `Reads text from stdin and streams back the corrected version.
Memories and attachments stay out of the prompt; the instruction asks
for the correction only, with no commentary.`,
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringVar(&flagInstruction, "instruction", "", "override the correction instruction")
}

func runFix(cmd *cobra.Command, _ []string) error {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(input))
	if text == "" {
		return fmt.Errorf("nothing to fix on stdin")
	}

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

	instruction := cfg.Prompts.Fix
	if flagInstruction != "" {
		instruction = flagInstruction
	}

	done := make(chan struct{})
	var failure error

	_, err = eng.Generate(ctx, engine.Request{
		Surface:     "quickfix",
		AccountID:   flagAccount,
		ModelKey:    flagModel,
		BasePrompt:  instruction,
		UserMessage: text,
	}, engine.SurfaceCallbacks{
		OnDelta: func(d string) {
			fmt.Print(d)
		},
		OnFinalize: func(string) {
			fmt.Println()
		},
		OnBalance: func(int) {
			close(done)
		},
		OnError: func(kind ai.ErrorKind, detail string) {
			failure = fmt.Errorf("%s error: %s", kind, detail)
			close(done)
		},
	})
	if err != nil {
		return err
	}
	<-done
	return failure
}
