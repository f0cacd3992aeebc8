// Package callback persists inbound webhook deliveries. The store
// holds an append-only ordered slice in memory and mirrors it to a
// single JSON-array file; every append rewrites the file in full, so
// access serializes through one mutex (at-most-one-writer semantics).
package callback

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"datasweep/internal/domain"
)

// FileStore implements the callback store with JSON file persistence.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records []domain.CallbackRecord
}

// NewFileStore creates a file-backed callback store. Existing records
// at path are loaded so the total survives process restarts; a corrupt
// file is treated as empty rather than fatal.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("callbackstore: empty file path")
	}
	s := &FileStore{path: path}
	s.load()
	return s, nil
}

// Append stores one delivery and returns its sequence number: the
// store count after the append. Memory and file stay reconciled
// because the file is rewritten under the same lock.
func (s *FileStore) Append(rec domain.CallbackRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = newRecordID(time.Now())
	}
	s.records = append(s.records, rec)
	if err := s.save(); err != nil {
		// Roll back so memory and file stay in step.
		s.records = s.records[:len(s.records)-1]
		return 0, fmt.Errorf("callbackstore: persist: %w", err)
	}
	return len(s.records), nil
}

// Total returns the number of stored records, including ones loaded
// from a previous process lifetime.
func (s *FileStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Recent returns the last n records in arrival order.
func (s *FileStore) Recent(n int) []domain.CallbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]domain.CallbackRecord, n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// Latest returns the most recently received record.
func (s *FileStore) Latest() (domain.CallbackRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return domain.CallbackRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// Clear empties the in-memory sequence and removes the on-disk file.
// Unconditional; there is no backup.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("callbackstore: remove %s: %w", s.path, err)
	}
	return nil
}

// PruneOlderThan drops records whose timestamp is before cutoff and
// rewrites the file. Returns how many records were removed. Records
// with unparseable timestamps are kept.
func (s *FileStore) PruneOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0:0]
	for _, rec := range s.records {
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err == nil && ts.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(s.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.records = kept
	if len(s.records) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("callbackstore: remove %s: %w", s.path, err)
		}
		return removed, nil
	}
	if err := s.save(); err != nil {
		return 0, fmt.Errorf("callbackstore: persist: %w", err)
	}
	return removed, nil
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var records []domain.CallbackRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	s.records = records
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func newRecordID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
