// Package cli is the command surface over the generation engine: an
// interactive chat, a stdin quick-fix, titling, and account utilities.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixlabs/helix/internal/config"
	"github.com/helixlabs/helix/internal/db"
	"github.com/helixlabs/helix/internal/engine"
	"github.com/helixlabs/helix/internal/logging"
)

var (
	flagConfig  string
	flagAccount string
	flagModel   string
)

// baseConfig is the embedded default configuration handed over by main;
// --config replaces it wholesale.
var baseConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:          "helix",
	Short:        "Helix generation and token-metering engine",
	SilenceUsage: true,
}

// Execute runs the CLI over the given base configuration.
func Execute(cfg config.Config) {
	baseConfig = cfg
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "local", "account id")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model key from the config table")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(notebookCmd)
}

// setup loads config, opens the store, and assembles the engine. Quiet
// commands stream model output on stdout, so their logs go to discard.
func setup(quiet bool) (config.Config, *db.Store, *engine.Engine, error) {
	cfg := baseConfig
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return cfg, nil, nil, err
		}
	}

	var logger *slog.Logger
	if quiet {
		logger = logging.Discard()
	} else {
		logger = logging.Setup(os.Stderr, cfg.LogLevel)
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return cfg, nil, nil, err
	}

	return cfg, store, engine.New(cfg, store, logger), nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the account's token balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		balance, err := eng.Ledger().Balance(ctx, flagAccount)
		if err != nil {
			return err
		}
		fmt.Printf("%d\n", balance)
		return nil
	},
}
