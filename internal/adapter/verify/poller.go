package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"datasweep/internal/domain"
)

// ErrNoResults is returned when the poll ceiling passes without a
// callback arriving. Results may still be in flight server-side.
var ErrNoResults = errors.New("no results received before deadline")

const (
	defaultPollInterval = 5 * time.Second
	defaultPollCeiling  = 30 * time.Second
	resultsFilePrefix   = "batch_results_"
	previewLines        = 3
)

// Outcome is what a completed poll observed.
type Outcome struct {
	Total            int
	ReportURL        string
	ExpiresInMinutes int
}

type receiverSnapshot struct {
	Total     int `json:"total"`
	Callbacks []struct {
		Data json.RawMessage `json:"data"`
	} `json:"callbacks"`
}

// Poller watches the callback receiver's /webhooks endpoint until a
// result callback lands or the ceiling passes. Repeated receiver
// failures open a breaker so a dead receiver fails the run fast
// instead of burning the whole ceiling.
type Poller struct {
	webhookURL string
	interval   time.Duration
	ceiling    time.Duration
	resultsDir string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[*receiverSnapshot]
	logger     *slog.Logger
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithPollTiming overrides the check interval and overall ceiling.
func WithPollTiming(interval, ceiling time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
		if ceiling > 0 {
			p.ceiling = ceiling
		}
	}
}

// WithResultsDir sets where downloaded reports are written.
func WithResultsDir(dir string) PollerOption {
	return func(p *Poller) { p.resultsDir = dir }
}

// WithPollerHTTPClient overrides the default HTTP client. Used by tests.
func WithPollerHTTPClient(hc *http.Client) PollerOption {
	return func(p *Poller) { p.client = hc }
}

func NewPoller(webhookURL string, logger *slog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		webhookURL: webhookURL,
		interval:   defaultPollInterval,
		ceiling:    defaultPollCeiling,
		resultsDir: ".",
		client:     &http.Client{Timeout: probeTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.breaker = gobreaker.NewCircuitBreaker[*receiverSnapshot](gobreaker.Settings{
		Name:        "webhook-receiver",
		MaxRequests: 1,
		Timeout:     p.ceiling,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return p
}

// Wait polls the receiver until a callback arrives, the ceiling
// passes, or ctx is done. Returns ErrNoResults on ceiling expiry.
func (p *Poller) Wait(ctx context.Context) (*Outcome, error) {
	const op = "verify.Wait"

	deadline := time.Now().Add(p.ceiling)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("monitoring for results",
		"webhooks_url", p.webhookURL+"/webhooks",
		"ceiling", p.ceiling,
	)

	for {
		select {
		case <-ctx.Done():
			return nil, domain.WrapOp(op, ctx.Err())
		case <-ticker.C:
		}

		snap, err := p.breaker.Execute(func() (*receiverSnapshot, error) {
			return p.fetch(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return nil, domain.WrapOp(op, fmt.Errorf("%w: receiver unreachable", domain.ErrTransport))
			}
			p.logger.Debug("receiver check failed", "error", err)
		} else if snap.Total > 0 {
			p.logger.Info("callbacks received", "total", snap.Total)
			return outcomeFrom(snap), nil
		}

		if time.Now().After(deadline) {
			return nil, domain.WrapOp(op, ErrNoResults)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) (*receiverSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.webhookURL+"/webhooks", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receiver status %d", resp.StatusCode)
	}
	var snap receiverSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode receiver response: %w", err)
	}
	return &snap, nil
}

// outcomeFrom inspects the latest callback for a report link.
func outcomeFrom(snap *receiverSnapshot) *Outcome {
	out := &Outcome{Total: snap.Total}
	if len(snap.Callbacks) == 0 {
		return out
	}

	var data struct {
		ReportURL        string `json:"report_url"`
		ExpiresInMinutes int    `json:"expires_in_minutes"`
	}
	latest := snap.Callbacks[len(snap.Callbacks)-1]
	if err := json.Unmarshal(latest.Data, &data); err != nil {
		return out
	}
	out.ReportURL = data.ReportURL
	out.ExpiresInMinutes = data.ExpiresInMinutes
	return out
}

// DownloadReport fetches the result CSV, stores it under resultsDir,
// and returns the saved path plus up to three data rows for preview.
func (p *Poller) DownloadReport(ctx context.Context, reportURL string) (string, []string, error) {
	const op = "verify.DownloadReport"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
	if err != nil {
		return "", nil, domain.WrapOp(op, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", nil, domain.WrapOp(op, fmt.Errorf("%w: %v", domain.ErrTransport, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, domain.WrapOp(op, fmt.Errorf("%w: report status %d", domain.ErrProvider, resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", nil, domain.WrapOp(op, fmt.Errorf("read report: %w", err))
	}

	path := filepath.Join(p.resultsDir, resultsFilePrefix+time.Now().Format(fileStamp)+".csv")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0600); err != nil {
		return "", nil, domain.WrapOp(op, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", nil, domain.WrapOp(op, err)
	}

	return path, previewRows(string(body)), nil
}

// previewRows returns up to previewLines data rows, skipping the
// header line.
func previewRows(body string) []string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) < 2 {
		return nil
	}
	rows := lines[1:]
	if len(rows) > previewLines {
		rows = rows[:previewLines]
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, strings.TrimSpace(r))
	}
	return out
}
