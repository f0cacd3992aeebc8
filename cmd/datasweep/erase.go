package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"datasweep/internal/adapter/erasure"
	"datasweep/internal/report"
	"datasweep/internal/usecase"
)

var eraseCmd = &cobra.Command{
	Use:   "erase <file>",
	Short: "Submit a batch email-erasure job for the addresses in <file>",
	Long: `Reads email addresses from a text or CSV file and submits an
erasure job for them through every configured SendGrid integration.
A JSON record and a Markdown report are written for each run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Erasure.Integrations) == 0 {
			return fmt.Errorf("no API keys configured; set SENDGRID_API_KEY_1 and/or SENDGRID_API_KEY_2")
		}

		clients := make([]usecase.ErasureClient, 0, len(cfg.Erasure.Integrations))
		for _, ic := range cfg.Erasure.Integrations {
			if ic.APIKey == "" {
				continue
			}
			clients = append(clients, erasure.NewClient(ic.Name, ic.APIKey, cfg.Erasure.BaseURL, log,
				erasure.WithRateLimit(cfg.Erasure.RequestsPerSec),
				erasure.WithHTTPClient(&http.Client{Timeout: cfg.Erasure.RequestTimeout}),
			))
		}

		writer, err := report.NewWriter(cfg.Reports.Dir)
		if err != nil {
			return err
		}

		eraser := usecase.NewEraser(clients, writer, console, log)
		_, err = eraser.Run(cmd.Context(), args[0])
		return err
	},
}
