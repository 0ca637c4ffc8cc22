package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("movie not found")
	ErrUpstream    = errors.New("upstream error")
	ErrBadResponse = errors.New("malformed response")
	ErrTimeout     = errors.New("request timed out")
)

// FetchError carries the failed operation and upstream status. It unwraps
// to one of the sentinels above, or to the transport error.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("catalog: %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
