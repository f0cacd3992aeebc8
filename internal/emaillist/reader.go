// Package emaillist reads candidate email addresses from CSV or plain
// text input files. Validation is deliberately shallow: a candidate is
// accepted iff it is non-empty after trimming and contains '@'. Input
// order is preserved and duplicates are kept.
package emaillist

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"datasweep/internal/domain"
)

// Read returns the ordered list of accepted addresses from path.
// CSV files take the first column of each record; other files take one
// candidate per line. A missing file wraps domain.ErrFileNotFound,
// any other read failure wraps domain.ErrFileAccess.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapOp("open "+path, domain.ErrFileNotFound)
		}
		return nil, domain.WrapOp("open "+path, domain.ErrFileAccess)
	}
	defer f.Close()

	if isCSV(path) {
		return readCSV(f)
	}
	return readLines(f)
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func readCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are fine, only column 0 matters

	var emails []string
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.WrapOp("read csv", domain.ErrFileAccess)
		}
		if len(rec) == 0 {
			continue
		}
		if first {
			first = false
			if looksLikeHeader(rec) {
				continue
			}
		}
		if e := accept(rec[0]); e != "" {
			emails = append(emails, e)
		}
	}
	return emails, nil
}

func readLines(r io.Reader) ([]string, error) {
	var emails []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if e := accept(sc.Text()); e != "" {
			emails = append(emails, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, domain.WrapOp("read lines", domain.ErrFileAccess)
	}
	return emails, nil
}

// looksLikeHeader reports whether the first CSV record is a header row.
// Heuristic: any non-empty token without '@' marks it as a header
// ("email", "name", ...). A record of address-shaped tokens is data.
func looksLikeHeader(rec []string) bool {
	for _, field := range rec {
		field = strings.TrimSpace(field)
		if field != "" && !strings.Contains(field, "@") {
			return true
		}
	}
	return false
}

// accept trims the candidate and returns it when it qualifies, else "".
func accept(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "@") {
		return ""
	}
	return s
}
