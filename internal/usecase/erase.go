// Package usecase wires the adapters into the top-level flows the CLI
// runs: batch email erasure and batch age verification.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datasweep/internal/domain"
	"datasweep/internal/emaillist"
	"datasweep/internal/report"
	"datasweep/internal/ux"
)

// ErasureClient is one configured vendor integration.
type ErasureClient interface {
	Integration() string
	CheckConnection(ctx context.Context) error
	Erase(ctx context.Context, emails []string) domain.ErasureResult
}

// Eraser runs the batch erasure flow: read the email file, submit an
// erasure job per integration, then write the run reports.
type Eraser struct {
	clients []ErasureClient
	reports *report.Writer
	console *ux.Console
	logger  *slog.Logger
}

func NewEraser(clients []ErasureClient, reports *report.Writer, console *ux.Console, logger *slog.Logger) *Eraser {
	return &Eraser{
		clients: clients,
		reports: reports,
		console: console,
		logger:  logger,
	}
}

// Run processes the email file at path. An integration that fails its
// connection check is skipped and does not appear in the run results.
func (e *Eraser) Run(ctx context.Context, path string) (*domain.ErasureRun, error) {
	const op = "usecase.Erase"

	e.console.Banner("SendGrid Batch Email Erasure")
	e.console.Detailf("Timestamp: %s", time.Now().Format(time.RFC3339))
	e.console.Detailf("File: %s", path)

	emails, err := emaillist.Read(path)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	e.console.Printf("Found %d valid email addresses", len(emails))
	if len(emails) == 0 {
		return nil, domain.WrapOp(op, fmt.Errorf("%w: no valid emails in %s", domain.ErrInvalidInput, path))
	}

	e.console.Printf("Emails to be erased:")
	e.console.List(emails)

	if len(e.clients) == 0 {
		return nil, domain.WrapOp(op, fmt.Errorf("%w: no integrations configured", domain.ErrInvalidInput))
	}

	var results []domain.ErasureResult
	for _, client := range e.clients {
		name := client.Integration()
		e.console.Banner("Processing with " + name)

		if err := client.CheckConnection(ctx); err != nil {
			e.console.Failf("%s: API connection failed: %v", name, err)
			e.logger.Warn("skipping integration", "integration", name, "error", err)
			continue
		}
		e.console.Successf("%s: API connection successful", name)

		result := client.Erase(ctx, emails)
		results = append(results, result)
		e.reportResult(result)
	}

	run := report.Aggregate(emails, results, time.Now())
	jsonPath, mdPath, err := e.reports.Write(run)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	e.console.Successf("JSON record saved to: %s", jsonPath)
	e.console.Successf("Report saved to: %s", mdPath)

	return &run, nil
}

func (e *Eraser) reportResult(result domain.ErasureResult) {
	if result.Success {
		e.console.Successf("Success: %s", result.Message)
		for id, value := range result.RequestIDs {
			e.console.Detailf("%s: %s", id, value)
		}
		return
	}
	if result.StatusCode != nil {
		e.console.Failf("Failed: Status %d", *result.StatusCode)
	} else {
		e.console.Failf("Failed: request did not complete")
	}
	e.console.Detailf("Error: %s", result.Message)
}
