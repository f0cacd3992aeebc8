package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"datasweep/internal/adapter/verify"
	"datasweep/internal/usecase"
)

var (
	verifyWebhookURL string
	verifyCSVURL     string
	verifyForce      bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Submit a batch age-verification job and wait for results",
	Long: `Submits a batch verification job pointing at the configured CSV of
email addresses. Results are delivered to the webhook receiver, which
this command polls until they arrive or the poll window passes.

The webhook URL must be publicly reachable (an ngrok tunnel in front
of "datasweep serve" works). If it is not configured it is prompted
for interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Verify.APIKey == "" || cfg.Verify.APISecret == "" {
			return fmt.Errorf("API credentials not configured; set VERIFYMYAGE_API_KEY and VERIFYMYAGE_API_SECRET")
		}

		webhookURL := verifyWebhookURL
		if webhookURL == "" {
			webhookURL = cfg.Verify.WebhookURL
		}
		if webhookURL == "" {
			var err error
			webhookURL, err = promptWebhookURL(cmd)
			if err != nil {
				return err
			}
		}
		if !strings.HasPrefix(webhookURL, "http://") && !strings.HasPrefix(webhookURL, "https://") {
			return fmt.Errorf("invalid webhook URL %q: must start with http:// or https://", webhookURL)
		}

		csvURL := verifyCSVURL
		if csvURL == "" {
			if cfg.Verify.GitHubUser == "" {
				return fmt.Errorf("no CSV source; set --csv-url or GITHUB_USERNAME")
			}
			csvURL = verify.CSVURL(cfg.Verify.GitHubUser, cfg.Verify.GitHubRepo, cfg.Verify.CSVFilename)
		}

		client := verify.NewClient(cfg.Verify.APIKey, cfg.Verify.APISecret, cfg.Verify.BaseURLResolved(), log,
			verify.WithHTTPClient(&http.Client{Timeout: cfg.Verify.RequestTimeout}),
		)
		poller := verify.NewPoller(strings.TrimRight(webhookURL, "/"), log,
			verify.WithPollTiming(cfg.Verify.PollInterval, cfg.Verify.PollCeiling),
			verify.WithResultsDir(cfg.Receiver.ResultsDir),
		)

		verifier := usecase.NewVerifier(client, poller, console, log)
		_, err := verifier.Run(cmd.Context(), csvURL, webhookURL, verifyForce)
		return err
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyWebhookURL, "webhook-url", "", "public URL of the webhook receiver")
	verifyCmd.Flags().StringVar(&verifyCSVURL, "csv-url", "", "public URL of the email CSV (overrides GitHub coordinates)")
	verifyCmd.Flags().BoolVar(&verifyForce, "force", false, "submit even when the webhook probe fails")
}

func promptWebhookURL(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter your webhook URL (e.g. https://abc123.ngrok.app): ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read webhook URL: %w", err)
	}
	url := strings.TrimSpace(line)
	if url == "" {
		return "", fmt.Errorf("webhook URL is required")
	}
	return url, nil
}
