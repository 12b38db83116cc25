package syncer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an invocation did not succeed.
type ErrorKind string

const (
	// KindNotConfigured means provider credentials are missing.
	KindNotConfigured ErrorKind = "not_configured"
	// KindStorageUnavailable means storage is disabled, unconfigured or unreachable.
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	// KindProviderUnavailable means a users or applications listing failed.
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	// KindPartialEntityFailure is absorbed inside a run and only logged and counted.
	KindPartialEntityFailure ErrorKind = "partial_entity_failure"
	// KindUnhandledRunFailure is anything else that escaped the phases.
	KindUnhandledRunFailure ErrorKind = "unhandled_run_failure"
	// KindSyncInProgress means another run holds the connection's lock.
	KindSyncInProgress ErrorKind = "sync_in_progress"
)

var (
	ErrNotConfigured       = errors.New("provider is not configured")
	ErrStorageDisabled     = errors.New("storage is disabled")
	ErrStorageUnconfigured = errors.New("storage is not configured")
	ErrSyncInProgress      = errors.New("a sync is already running for this connection")
)

// Error is a classified failure with a message safe to show an operator.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
