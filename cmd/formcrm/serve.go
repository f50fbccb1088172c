package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcrm/internal/server"
)

var flagGrace time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve forms over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(a.Orchestrator,
			server.WithLogger(logger.Named("http")),
			server.WithCookieName(cfg.Server.CookieName),
			server.WithSessionTTL(cfg.Transient.TTL),
			server.WithContactSeeding(cfg.Server.SeedContacts),
		)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, flagGrace)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&flagGrace, "grace", 5*time.Second, "shutdown grace period")
}
