package ifbeam

import "fmt"

// StatusError reports a non-200 response from IFBeam DB. The query is
// not retried; callers decide whether to resubmit.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ifbeam: unexpected status %d", e.StatusCode)
}

// ParseError reports a data line whose trailing field could not be
// parsed as a float64.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ifbeam: line %d: bad sample value %q: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
