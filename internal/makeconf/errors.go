package makeconf

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLine is returned when a non-blank, non-comment line does not
	// match the IDENTIFIER=VALUE assignment grammar.
	ErrMalformedLine = errors.New("line is not a valid KEY=VALUE assignment")
	// ErrUnterminatedQuote is returned when a quoted value is still open at end of file.
	ErrUnterminatedQuote = errors.New("quoted value is missing its closing quote")
	// ErrFileNotFound is returned when the configuration file does not exist or cannot be read.
	ErrFileNotFound = errors.New("configuration file does not exist or is unreadable")
)

// LineError decorates a parse error with the 1-based line number where
// scanning stopped. It unwraps to one of the sentinel errors above.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

func lineError(line int, err error) error {
	return &LineError{Line: line, Err: err}
}
