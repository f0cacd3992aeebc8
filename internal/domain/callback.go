package domain

import "encoding/json"

// CallbackRecord is one inbound webhook delivery. Records are append
// only; the store never mutates them after creation.
type CallbackRecord struct {
	ID         string            `json:"id"`
	Timestamp  string            `json:"timestamp"` // RFC 3339
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	RemoteAddr string            `json:"remote_addr"`
	Data       json.RawMessage   `json:"data"`
}

// BatchJob is the persisted context of one batch-verification
// submission: the provider job id plus enough to replay the request.
type BatchJob struct {
	BatchID     string          `json:"batch_id"`
	JobInfo     json.RawMessage `json:"job_info"`
	CSVURL      string          `json:"csv_url"`
	CallbackURL string          `json:"callback_url"`
	Timestamp   string          `json:"timestamp"`
}
