package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasweep/internal/adapter/verify"
	"datasweep/internal/domain"
	"datasweep/internal/infra/logger"
	"datasweep/internal/ux"
)

type stubSubmitter struct {
	probeErr    error
	submitErr   error
	job         *domain.BatchJob
	gotCSVURL   string
	gotWebhook  string
	submitCalls int
}

func (s *stubSubmitter) ProbeWebhook(ctx context.Context, webhookURL string) error {
	return s.probeErr
}

func (s *stubSubmitter) SubmitBatch(ctx context.Context, csvURL, webhookURL string) (*domain.BatchJob, error) {
	s.submitCalls++
	s.gotCSVURL = csvURL
	s.gotWebhook = webhookURL
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.job, nil
}

type stubWaiter struct {
	outcome     *verify.Outcome
	waitErr     error
	path        string
	preview     []string
	downloadErr error
	gotURL      string
}

func (s *stubWaiter) Wait(ctx context.Context) (*verify.Outcome, error) {
	return s.outcome, s.waitErr
}

func (s *stubWaiter) DownloadReport(ctx context.Context, reportURL string) (string, []string, error) {
	s.gotURL = reportURL
	return s.path, s.preview, s.downloadErr
}

func newVerifier(client BatchSubmitter, poller ResultWaiter) *Verifier {
	return NewVerifier(client, poller, ux.New(io.Discard), logger.Discard())
}

func TestVerifierRun(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-1"}}
	poller := &stubWaiter{
		outcome: &verify.Outcome{Total: 1, ReportURL: "https://reports.example.com/r.csv"},
		path:    "/tmp/batch_results_x.csv",
		preview: []string{"a@x.com,true"},
	}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "b-1", job.BatchID)
	assert.Equal(t, "https://example.com/f.csv", client.gotCSVURL)
	assert.Equal(t, "https://hook.example.com", client.gotWebhook)
	assert.Equal(t, "https://reports.example.com/r.csv", poller.gotURL)
}

func TestVerifierTrimsTrailingSlash(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-1"}}
	poller := &stubWaiter{outcome: &verify.Outcome{Total: 1}}
	v := newVerifier(client, poller)

	_, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com/", false)
	require.NoError(t, err)
	assert.Equal(t, "https://hook.example.com", client.gotWebhook)
}

func TestVerifierProbeFailureAborts(t *testing.T) {
	client := &stubSubmitter{probeErr: errors.New("connection refused")}
	v := newVerifier(client, &stubWaiter{})

	_, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.Error(t, err)
	assert.Zero(t, client.submitCalls, "failed probe must not submit")
}

func TestVerifierProbeFailureForced(t *testing.T) {
	client := &stubSubmitter{
		probeErr: errors.New("connection refused"),
		job:      &domain.BatchJob{BatchID: "b-2"},
	}
	poller := &stubWaiter{outcome: &verify.Outcome{Total: 1}}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "b-2", job.BatchID)
	assert.Equal(t, 1, client.submitCalls)
}

func TestVerifierSubmitFailure(t *testing.T) {
	client := &stubSubmitter{submitErr: errors.New("status 401")}
	v := newVerifier(client, &stubWaiter{})

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.Error(t, err)
	assert.Nil(t, job)
}

func TestVerifierNoResultsIsNotFatal(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-3"}}
	poller := &stubWaiter{waitErr: verify.ErrNoResults}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "b-3", job.BatchID)
}

func TestVerifierReceiverUnreachableIsFatal(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-4"}}
	poller := &stubWaiter{waitErr: domain.ErrTransport}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.ErrorIs(t, err, domain.ErrTransport)
	// The job was submitted; it is returned even when monitoring fails.
	assert.Equal(t, "b-4", job.BatchID)
}

func TestVerifierNoReportURL(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-5"}}
	poller := &stubWaiter{outcome: &verify.Outcome{Total: 2}}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "b-5", job.BatchID)
	assert.Empty(t, poller.gotURL, "no download without a report link")
}

func TestVerifierDownloadFailureIsNotFatal(t *testing.T) {
	client := &stubSubmitter{job: &domain.BatchJob{BatchID: "b-6"}}
	poller := &stubWaiter{
		outcome:     &verify.Outcome{Total: 1, ReportURL: "https://reports.example.com/r.csv"},
		downloadErr: errors.New("status 404"),
	}
	v := newVerifier(client, poller)

	job, err := v.Run(context.Background(), "https://example.com/f.csv", "https://hook.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "b-6", job.BatchID)
}
