package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasweep/internal/domain"
	"datasweep/internal/infra/logger"
	"datasweep/internal/report"
	"datasweep/internal/ux"
)

type stubErasureClient struct {
	name       string
	connectErr error
	result     domain.ErasureResult
	eraseCalls int
	gotEmails  []string
}

func (s *stubErasureClient) Integration() string { return s.name }

func (s *stubErasureClient) CheckConnection(ctx context.Context) error { return s.connectErr }

func (s *stubErasureClient) Erase(ctx context.Context, emails []string) domain.ErasureResult {
	s.eraseCalls++
	s.gotEmails = emails
	return s.result
}

func writeEmailFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emails.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newEraser(t *testing.T, clients ...ErasureClient) (*Eraser, string) {
	t.Helper()
	dir := t.TempDir()
	writer, err := report.NewWriter(dir)
	require.NoError(t, err)
	return NewEraser(clients, writer, ux.New(io.Discard), logger.Discard()), dir
}

func TestEraserRun(t *testing.T) {
	ok := &stubErasureClient{
		name: "Integration 1",
		result: domain.ErasureResult{
			Integration: "Integration 1",
			Success:     true,
			Message:     "Successfully initiated erasure for 2 emails",
		},
	}
	code := 403
	denied := &stubErasureClient{
		name: "Integration 2",
		result: domain.ErasureResult{
			Integration: "Integration 2",
			Success:     false,
			StatusCode:  &code,
			Message:     "access forbidden",
		},
	}

	e, dir := newEraser(t, ok, denied)
	path := writeEmailFile(t, "a@x.com\nb@y.com\n")

	run, err := e.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, run.EmailCount)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, ok.gotEmails)
	assert.Len(t, run.Results, 2)
	assert.True(t, run.Results["Integration 1"].Success)
	assert.False(t, run.Results["Integration 2"].Success)

	jsonFiles, err := filepath.Glob(filepath.Join(dir, "erasure_record_*.json"))
	require.NoError(t, err)
	assert.Len(t, jsonFiles, 1)
	mdFiles, err := filepath.Glob(filepath.Join(dir, "erasure_report_*.md"))
	require.NoError(t, err)
	assert.Len(t, mdFiles, 1)
}

func TestEraserSkipsFailedPreflight(t *testing.T) {
	down := &stubErasureClient{
		name:       "Integration 1",
		connectErr: errors.New("status 401"),
	}
	ok := &stubErasureClient{
		name: "Integration 2",
		result: domain.ErasureResult{
			Integration: "Integration 2",
			Success:     true,
			Message:     "Successfully initiated erasure for 1 emails",
		},
	}

	e, _ := newEraser(t, down, ok)
	path := writeEmailFile(t, "a@x.com\n")

	run, err := e.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Zero(t, down.eraseCalls, "failed preflight must skip erasure")
	assert.Equal(t, 1, ok.eraseCalls)
	// Skipped integrations leave no trace in the run results.
	assert.Len(t, run.Results, 1)
	assert.Contains(t, run.Results, "Integration 2")
}

func TestEraserNoValidEmails(t *testing.T) {
	e, _ := newEraser(t, &stubErasureClient{name: "Integration 1"})
	path := writeEmailFile(t, "not-an-email\n\n")

	_, err := e.Run(context.Background(), path)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEraserMissingFile(t *testing.T) {
	e, _ := newEraser(t, &stubErasureClient{name: "Integration 1"})

	_, err := e.Run(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	require.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestEraserNoClients(t *testing.T) {
	e, _ := newEraser(t)
	path := writeEmailFile(t, "a@x.com\n")

	_, err := e.Run(context.Background(), path)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
