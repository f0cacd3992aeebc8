package domain

import "fmt"

// Sentinel errors for the domain layer. Scripts treat file errors as
// fatal; transport, provider and parse errors are recovered into
// failure results and reported.
var (
	ErrFileNotFound = fmt.Errorf("input file not found")
	ErrFileAccess   = fmt.Errorf("input file unreadable")
	ErrTransport    = fmt.Errorf("no response from provider")
	ErrProvider     = fmt.Errorf("provider returned an error")
	ErrParse        = fmt.Errorf("response body not parseable")
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
