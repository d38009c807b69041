package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrBlocked marks responses that indicate the target is throttling or
	// refusing us.
	ErrBlocked = errors.New("blocked by target")
	// ErrEmptyBody is returned for a success status with no content.
	ErrEmptyBody = errors.New("empty response body")
)

// StatusError is a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Unwrap lets errors.Is(err, ErrBlocked) match blocking statuses.
func (e *StatusError) Unwrap() error {
	if isBlockingStatus(e.Code) {
		return ErrBlocked
	}
	return nil
}

func isBlockingStatus(code int) bool {
	return code == http.StatusForbidden ||
		code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable
}

// FetchResult is the outcome of fetching one page. RawHTML is nil whenever Err
// is set.
type FetchResult struct {
	TargetName string
	URL        string
	RawHTML    []byte
	HTTPStatus int
	FetchedAt  time.Time
	Attempts   int
	UserAgent  string
	Err        error
}

// OK reports whether the fetch produced a body.
func (r *FetchResult) OK() bool {
	return r != nil && r.Err == nil && r.RawHTML != nil
}
