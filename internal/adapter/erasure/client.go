// Package erasure talks to the email-delivery provider's data-erasure
// API. One client per integration; calls are sequential and never
// retried.
package erasure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"datasweep/internal/domain"
)

const (
	profilePath  = "/v3/user/profile"
	eraseJobPath = "/v3/recipients/erasejob"

	maxResponseBody = 1 * 1024 * 1024
)

// Response headers the provider uses for request tracing.
var traceHeaders = map[string]string{
	"X-Request-Id": "x_request_id",
	"X-Message-Id": "x_message_id",
	"X-Trace-Id":   "x_trace_id",
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit sets the client-side outbound request limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Client submits erasure jobs for a single named integration.
type Client struct {
	integration string
	apiKey      string
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates an erasure client for one integration.
func NewClient(integration, apiKey, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		integration: integration,
		apiKey:      apiKey,
		baseURL:     baseURL,
		logger:      logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Integration returns the integration name this client is bound to.
func (c *Client) Integration() string { return c.integration }

// CheckConnection issues the authenticated profile fetch used as a
// liveness probe. Only HTTP 200 counts as connected; a 200 does not
// guarantee erasure permission, which surfaces at the erasure call.
func (c *Client) CheckConnection(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WrapOp("rate wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+profilePath, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrProvider, resp.StatusCode)
	}
	return nil
}

// Erase submits the full address list as one erasure job and
// normalizes the outcome into an ErasureResult. Transport failures and
// provider errors are folded into a failure result, never returned as
// an error; the run continues with the next integration either way.
func (c *Client) Erase(ctx context.Context, emails []string) domain.ErasureResult {
	result := domain.ErasureResult{
		Integration: c.integration,
		Emails:      emails,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		result.Message = fmt.Sprintf("request failed: %v", err)
		return result
	}

	body, err := json.Marshal(eraseJobRequest{EmailAddresses: emails})
	if err != nil {
		result.Message = fmt.Sprintf("marshal request: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+eraseJobPath, bytes.NewReader(body))
	if err != nil {
		result.Message = fmt.Sprintf("create request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// No response at all; no status code to record.
		result.Message = fmt.Sprintf("request failed: %v", err)
		c.logger.Warn("erasure transport failure", "integration", c.integration, "error", err)
		return result
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		respBody = nil
	}

	status := resp.StatusCode
	result.StatusCode = &status
	result.RequestIDs = extractRequestIDs(resp.Header, respBody)

	if domain.ErasureSuccessCodes[status] {
		result.Success = true
		result.Message = fmt.Sprintf("Successfully initiated erasure for %d emails", len(emails))
		c.logger.Info("erasure job accepted",
			"integration", c.integration,
			"status", status,
			"emails", len(emails),
		)
		return result
	}

	result.Message = extractErrorMessage(respBody)
	c.logger.Warn("erasure job rejected",
		"integration", c.integration,
		"status", status,
		"error", result.Message,
	)
	return result
}

type eraseJobRequest struct {
	EmailAddresses []string `json:"email_addresses"`
}

// extractRequestIDs pulls provider trace identifiers out of known
// response headers and body keys, tolerating absence of any of them.
func extractRequestIDs(h http.Header, body []byte) map[string]string {
	ids := map[string]string{}
	for header, key := range traceHeaders {
		if v := h.Get(header); v != "" {
			ids[key] = v
		}
	}

	var parsed map[string]any
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		for bodyKey, idKey := range map[string]string{
			"job_id":     "job_id",
			"id":         "erasure_job_id",
			"request_id": "request_id",
		} {
			if v, ok := parsed[bodyKey].(string); ok && v != "" {
				ids[idKey] = v
			}
		}
	}

	if len(ids) == 0 {
		return nil
	}
	return ids
}

// extractErrorMessage pulls a best-effort error out of the response
// body: an "errors" field, then "message", then the raw text.
func extractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return "Unknown error"
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if v, ok := parsed["errors"]; ok {
		return stringify(v)
	}
	if v, ok := parsed["message"]; ok {
		return stringify(v)
	}
	return string(body)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
