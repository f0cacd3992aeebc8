package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"datasweep/internal/domain"
)

const (
	batchEstimatePath = "/api/v1/estimate/batch"
	fileStamp         = "20060102_150405"
	jobFilePrefix     = "batch_job_"

	defaultRequestTimeout = 10 * time.Second
	probeTimeout          = 5 * time.Second
	maxResponseBody       = 1 << 20
)

// Client submits batch verification jobs.
type Client struct {
	apiKey  string
	signer  *Signer
	baseURL string
	jobsDir string
	client  *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithJobsDir sets where job detail files are written. Defaults to
// the current directory.
func WithJobsDir(dir string) Option {
	return func(c *Client) { c.jobsDir = dir }
}

func NewClient(apiKey, apiSecret, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		signer:  NewSigner(apiSecret),
		baseURL: baseURL,
		jobsDir: ".",
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CSVURL builds the raw.githubusercontent.com URL for a file on the
// default branch of the configured repository.
func CSVURL(user, repo, filename string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/main/%s", user, repo, filename)
}

// ProbeWebhook checks that the callback receiver answers on its base
// URL before a job is submitted with it.
func (c *Client) ProbeWebhook(ctx context.Context, webhookURL string) error {
	const op = "verify.ProbeWebhook"

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, webhookURL, nil)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WrapOp(op, fmt.Errorf("%w: %v", domain.ErrTransport, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		return domain.WrapOp(op, fmt.Errorf("%w: webhook returned status %d", domain.ErrProvider, resp.StatusCode))
	}
	return nil
}

type batchRequest struct {
	FileURL     string `json:"file_url"`
	CallbackURL string `json:"callback_url"`
}

// SubmitBatch creates a batch verification job for the emails listed
// in the CSV at csvURL. Results are delivered to webhookURL/callback.
// On success the job details are persisted under jobsDir.
func (c *Client) SubmitBatch(ctx context.Context, csvURL, webhookURL string) (*domain.BatchJob, error) {
	const op = "verify.SubmitBatch"

	payload, err := json.Marshal(batchRequest{
		FileURL:     csvURL,
		CallbackURL: webhookURL + "/callback",
	})
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchEstimatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Signature covers the exact request body bytes.
	req.Header.Set("Authorization", c.signer.Authorization(c.apiKey, payload))

	c.logger.Info("submitting batch job", "csv_url", csvURL, "callback_url", webhookURL+"/callback")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.WrapOp(op, fmt.Errorf("%w: %v", domain.ErrTransport, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.WrapOp(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.WrapOp(op, fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, body))
	}

	job := &domain.BatchJob{
		BatchID:     extractBatchID(body),
		JobInfo:     json.RawMessage(body),
		CSVURL:      csvURL,
		CallbackURL: webhookURL,
		Timestamp:   time.Now().Format(fileStamp),
	}
	c.logger.Info("batch job created", "batch_id", job.BatchID)

	if path, err := c.saveJob(job); err != nil {
		c.logger.Warn("save job details", "error", err)
	} else {
		c.logger.Info("job details saved", "path", path)
	}
	return job, nil
}

// extractBatchID pulls the job identifier out of the submit response,
// preferring "batch_id" over "id".
func extractBatchID(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "N/A"
	}
	for _, key := range []string{"batch_id", "id"} {
		if v, ok := parsed[key]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case float64:
				return fmt.Sprintf("%v", t)
			}
		}
	}
	return "N/A"
}

func (c *Client) saveJob(job *domain.BatchJob) (string, error) {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(c.jobsDir, jobFilePrefix+job.Timestamp+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
