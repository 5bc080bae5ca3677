package fetcher

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetryable marks a lookup the server throttled; the backoff has already been slept.
	ErrRetryable = errors.New("history lookup throttled")
	// ErrFailed marks any other failed lookup.
	ErrFailed = errors.New("history lookup failed")
)

// Kind classifies a FetchError.
type Kind int

const (
	KindFailed Kind = iota
	KindRetryable
)

func (k Kind) String() string {
	if k == KindRetryable {
		return "retryable"
	}
	return "failed"
}

// FetchError describes why a history lookup produced no statistics.
type FetchError struct {
	Kind       Kind
	Item       string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("history %s for %q", e.Kind, e.Item)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrRetryable and ErrFailed by kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrRetryable:
		return e.Kind == KindRetryable
	case ErrFailed:
		return e.Kind == KindFailed
	}
	return false
}

func failed(item string, status int, err error) *FetchError {
	return &FetchError{Kind: KindFailed, Item: item, Status: status, Err: err}
}
