package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/internal/app"
	"github.com/goliatone/go-formcrm/internal/config"
	"github.com/goliatone/go-formcrm/internal/logging"
)

const exitUserError = 1

// Global flag values.
var (
	flagConfig   string
	flagLogLevel string
	flagFormsDir string
)

// Set by PersistentPreRunE so all subcommands can use them.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "formcrm",
	Short:         "Serve and fill forms whose processors read and write CiviCRM",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			loaded.Log.Level = flagLogLevel
		}
		if flagFormsDir != "" {
			loaded.Forms.Dir = flagFormsDir
		}
		cfg = loaded

		built, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./formcrm.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagFormsDir, "forms-dir", "", "directory holding form definitions")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(processorsCmd)
}

// newApp builds the runtime from the loaded configuration.
func newApp(ctx context.Context, options ...app.Option) (*app.App, error) {
	return app.New(ctx, cfg, logger, options...)
}

// seedContacts applies "link=contact_id" pairs to the session's transient.
func seedContacts(ctx context.Context, a *app.App, sessionID string, pairs []string) error {
	for _, pair := range pairs {
		link, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("contact %q: expected link=contact_id", pair)
		}
		contactID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || contactID <= 0 {
			return fmt.Errorf("contact %q: contact id must be a positive integer", pair)
		}
		if err := a.Orchestrator.SeedContact(ctx, sessionID, strings.TrimSpace(link), contactID); err != nil {
			return err
		}
	}
	return nil
}
