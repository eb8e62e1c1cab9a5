package loader

import (
	"errors"
	"fmt"
)

// RequiredAssetError is the fatal terminal state of a non-optional asset:
// every source and retry was exhausted. It cancels all in-flight sibling
// fetches and aborts the boot.
type RequiredAssetError struct {
	Name     string
	Attempts []error
}

func (e *RequiredAssetError) Error() string {
	return fmt.Sprintf("required asset %q unavailable after %d attempt(s): %v",
		e.Name, len(e.Attempts), errors.Join(e.Attempts...))
}

// Unwrap exposes the per-attempt errors for errors.Is/As.
func (e *RequiredAssetError) Unwrap() []error { return e.Attempts }

// IntegrityError reports a content hash mismatch for one source attempt.
// It is a failed source attempt like any transport failure, except it is
// never retried against the same source.
type IntegrityError struct {
	URL  string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: want %s, got %s", e.URL, e.Want, e.Got)
}

// attemptError is one failed fetch attempt, classified for retry policy.
type attemptError struct {
	url       string
	transient bool
	err       error
}

func (e *attemptError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.url, e.err)
}

func (e *attemptError) Unwrap() error { return e.err }

// isTransient reports whether a failed attempt may succeed against the
// same source when retried.
func isTransient(err error) bool {
	var attempt *attemptError
	if errors.As(err, &attempt) {
		return attempt.transient
	}
	return false
}
