package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"datasweep/internal/adapter/verify"
	"datasweep/internal/domain"
	"datasweep/internal/ux"
)

// BatchSubmitter submits a batch verification job.
type BatchSubmitter interface {
	ProbeWebhook(ctx context.Context, webhookURL string) error
	SubmitBatch(ctx context.Context, csvURL, webhookURL string) (*domain.BatchJob, error)
}

// ResultWaiter watches the callback receiver and fetches the report.
type ResultWaiter interface {
	Wait(ctx context.Context) (*verify.Outcome, error)
	DownloadReport(ctx context.Context, reportURL string) (string, []string, error)
}

// Verifier runs the batch verification flow end to end.
type Verifier struct {
	client  BatchSubmitter
	poller  ResultWaiter
	console *ux.Console
	logger  *slog.Logger
}

func NewVerifier(client BatchSubmitter, poller ResultWaiter, console *ux.Console, logger *slog.Logger) *Verifier {
	return &Verifier{
		client:  client,
		poller:  poller,
		console: console,
		logger:  logger,
	}
}

// Run probes the webhook, submits the job for csvURL, then waits for
// results to land on the receiver. A failed probe aborts unless force
// is set. A quiet poll window is reported, not treated as an error:
// results may arrive after the CLI exits.
func (v *Verifier) Run(ctx context.Context, csvURL, webhookURL string, force bool) (*domain.BatchJob, error) {
	const op = "usecase.Verify"

	v.console.Banner("VerifyMyAge Batch Email Verification")

	webhookURL = strings.TrimRight(webhookURL, "/")
	if err := v.client.ProbeWebhook(ctx, webhookURL); err != nil {
		if !force {
			return nil, domain.WrapOp(op, err)
		}
		v.console.Failf("Webhook may not be accessible: %v", err)
		v.console.Detailf("Continuing anyway")
	} else {
		v.console.Successf("Webhook is accessible: %s", webhookURL)
	}

	job, err := v.client.SubmitBatch(ctx, csvURL, webhookURL)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	v.console.Successf("Batch job created: %s", job.BatchID)

	outcome, err := v.poller.Wait(ctx)
	if err != nil {
		if errors.Is(err, verify.ErrNoResults) {
			v.console.Printf("No results received yet. They may still be processing.")
			v.console.Detailf("Check the webhook server at %s/webhooks", webhookURL)
			return job, nil
		}
		return job, domain.WrapOp(op, err)
	}

	v.console.Successf("Received %d callback(s)", outcome.Total)
	if outcome.ReportURL == "" {
		v.console.Printf("Latest callback carries no report link yet.")
		return job, nil
	}

	path, preview, err := v.poller.DownloadReport(ctx, outcome.ReportURL)
	if err != nil {
		v.console.Failf("Could not download results: %v", err)
		v.logger.Warn("report download failed", "error", err)
		return job, nil
	}
	v.console.Successf("Results saved to: %s", path)
	if len(preview) > 0 {
		v.console.Printf("Sample results:")
		v.console.List(preview)
	}
	return job, nil
}
