package domain

import "time"

// Erasure success codes. The erasure endpoint returns 201 for job
// creation and 202 for acceptance; 200/204 are tolerated.
var ErasureSuccessCodes = map[int]bool{200: true, 201: true, 202: true, 204: true}

// ErasureRequest describes one batch-erasure submission: the full
// address list is sent as a single request per integration.
type ErasureRequest struct {
	Emails      []string
	Integration string
	APIKey      string
}

// ErasureResult is the normalized outcome of one erasure call for one
// integration. It is immutable after construction: build it, report
// it, persist it.
type ErasureResult struct {
	Integration string            `json:"integration"`
	Success     bool              `json:"success"`
	StatusCode  *int              `json:"status_code"`
	Message     string            `json:"message"`
	Emails      []string          `json:"emails"`
	RequestIDs  map[string]string `json:"request_ids,omitempty"`
}

// ErasureRun aggregates per-integration results for one invocation.
type ErasureRun struct {
	ID         string                   `json:"id"`
	Timestamp  time.Time                `json:"timestamp"`
	EmailCount int                      `json:"emails_count"`
	Emails     []string                 `json:"emails"`
	Results    map[string]ErasureResult `json:"results"`
}
