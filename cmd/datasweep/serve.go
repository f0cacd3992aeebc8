package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"datasweep/internal/adapter/webhook"
	"datasweep/internal/store/callback"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local webhook receiver",
	Long: `Starts the HTTP server verification callbacks are delivered to.
Every callback is stored in memory and mirrored to a JSON file, so
counts survive restarts. Expose it publicly with a tunnel (ngrok)
and pass that URL to "datasweep verify".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Receiver.Addr
		}

		store, err := callback.NewFileStore(cfg.Receiver.CallbacksFile)
		if err != nil {
			return fmt.Errorf("open callback store: %w", err)
		}

		srv := webhook.NewServer(store, addr, cfg.Receiver.ResultsDir, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(ctx); err != nil {
			return err
		}
		console.Banner("Webhook Receiver")
		console.Successf("Listening on %s", srv.BoundAddr())
		console.Detailf("Callbacks stored in %s (%d on record)", cfg.Receiver.CallbacksFile, store.Total())

		var pruner *webhook.RetentionPruner
		if cfg.Receiver.Retention.Enabled {
			maxAge, err := time.ParseDuration(cfg.Receiver.Retention.MaxAge)
			if err != nil {
				return fmt.Errorf("retention max_age: %w", err)
			}
			pruner, err = webhook.NewRetentionPruner(store, cfg.Receiver.Retention.Schedule, maxAge, log)
			if err != nil {
				return err
			}
			pruner.Start()
		}

		<-ctx.Done()
		console.Printf("Shutting down...")

		if pruner != nil {
			pruner.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}
