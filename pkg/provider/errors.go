package provider

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/iris/pkg/httpclient"
)

// ErrUnavailable matches every failure to read from the provider.
var ErrUnavailable = errors.New("identity provider unavailable")

const maxErrorBody = 1024

// Error describes a failed provider call. StatusCode is 0 for transport
// failures, in which case Err holds the cause.
type Error struct {
	StatusCode int
	Body       string
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("provider returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later run may succeed without a config change.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 || httpclient.IsRetryableStatus(e.StatusCode)
}

func newStatusError(statusCode int, url string, body []byte) *Error {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &Error{StatusCode: statusCode, Body: text, URL: url}
}
