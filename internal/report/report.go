// Package report aggregates per-integration erasure results into one
// run record and writes the JSON and Markdown summaries to disk.
package report

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"datasweep/internal/domain"
)

// Timestamp layout embedded in output filenames; second granularity,
// so two runs started in the same second collide on the same names.
const fileStamp = "20060102_150405"

// Writer persists erasure run records.
type Writer struct {
	dir string
}

// NewWriter returns a Writer targeting dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("report: create dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Aggregate builds the run-level record from the input list and the
// per-integration results.
func Aggregate(emails []string, results []domain.ErasureResult, now time.Time) domain.ErasureRun {
	run := domain.ErasureRun{
		ID:         newRunID(now),
		Timestamp:  now,
		EmailCount: len(emails),
		Emails:     emails,
		Results:    make(map[string]domain.ErasureResult, len(results)),
	}
	for _, r := range results {
		run.Results[r.Integration] = r
	}
	return run
}

// Write persists the JSON record and Markdown report for run and
// returns the two file paths (json, markdown).
func (w *Writer) Write(run domain.ErasureRun) (string, string, error) {
	stamp := run.Timestamp.Format(fileStamp)
	jsonPath := filepath.Join(w.dir, "erasure_record_"+stamp+".json")
	mdPath := filepath.Join(w.dir, "erasure_report_"+stamp+".md")

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("report: marshal record: %w", err)
	}
	if err := writeFileAtomic(jsonPath, data); err != nil {
		return "", "", fmt.Errorf("report: write record: %w", err)
	}

	if err := writeFileAtomic(mdPath, []byte(renderMarkdown(run))); err != nil {
		return "", "", fmt.Errorf("report: write report: %w", err)
	}

	return jsonPath, mdPath, nil
}

func renderMarkdown(run domain.ErasureRun) string {
	var b strings.Builder

	b.WriteString("# Email Erasure Report\n\n")
	fmt.Fprintf(&b, "**Generated**: %s\n\n", run.Timestamp.Format(time.RFC3339))
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Total Emails Processed**: %d\n", run.EmailCount)
	fmt.Fprintf(&b, "- **Integrations Tested**: %d\n\n", len(run.Results))

	b.WriteString("## Emails Processed\n\n")
	for i, email := range run.Emails {
		fmt.Fprintf(&b, "%d. %s\n", i+1, email)
	}

	b.WriteString("\n## Results by Integration\n\n")
	for _, name := range sortedNames(run.Results) {
		result := run.Results[name]
		fmt.Fprintf(&b, "### %s\n\n", name)
		if result.Success {
			b.WriteString("- **Status**: ✓ Success\n")
		} else {
			b.WriteString("- **Status**: ✗ Failed\n")
		}
		if result.StatusCode != nil {
			fmt.Fprintf(&b, "- **Status Code**: %d\n", *result.StatusCode)
		} else {
			b.WriteString("- **Status Code**: N/A\n")
		}
		fmt.Fprintf(&b, "- **Message**: %s\n", result.Message)
		if len(result.RequestIDs) > 0 {
			b.WriteString("\n#### Request IDs\n\n")
			for _, k := range sortedKeys(result.RequestIDs) {
				fmt.Fprintf(&b, "- **%s**: `%s`\n", k, result.RequestIDs[k])
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Notes\n\n")
	b.WriteString("- Erasure jobs are created via the Recipients' Data Erasure API\n")
	b.WriteString("- Endpoint: POST /v3/recipients/erasejob\n")
	b.WriteString("- Status 202 indicates job successfully accepted\n")
	b.WriteString("- Status 201 indicates job successfully created\n")
	b.WriteString("- Status 403 indicates insufficient API permissions\n")
	b.WriteString("- Erased addresses cannot be recovered\n")

	return b.String()
}

func sortedNames(m map[string]domain.ErasureResult) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// writeFileAtomic writes data to path via a temp file and rename so a
// crash mid-write never leaves a truncated report behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
