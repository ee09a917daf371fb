package ota

import (
	"context"
	"errors"
)

// Package-level errors.
var (
	// ErrIncorrectState is returned when an operation is attempted from a
	// state that does not permit it (e.g. TriggerImmediateQuery while not
	// Idle).
	ErrIncorrectState = errors.New("ota: incorrect state for requested operation")

	// ErrNoProvider is returned when there is no default OTA provider
	// configured for the node's commissioned fabrics.
	ErrNoProvider = errors.New("ota: no provider available")

	// ErrTimeout is returned when a provider request exceeds its deadline.
	ErrTimeout = errors.New("ota: request timed out")

	// ErrBusy is returned internally when a provider responds Busy; it
	// never escapes TriggerImmediateQuery, which instead returns to Idle
	// and notifies the driver via the delay hint.
	ErrBusy = errors.New("ota: provider busy")

	// ErrNetworkError wraps a session/transport failure encountered while
	// talking to a provider.
	ErrNetworkError = errors.New("ota: network error")

	// ErrNotRunning is returned when an operation requires a started
	// requestor.
	ErrNotRunning = errors.New("ota: requestor not running")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("ota: requestor already running")

	// ErrInvalidConfig is returned when RequestorConfig validation fails.
	ErrInvalidConfig = errors.New("ota: invalid configuration")
)

// mapErrorToIdleStateReason classifies an error encountered during the
// update flow into the IdleStateReason reported to the driver when the
// state machine falls back to Idle.
func mapErrorToIdleStateReason(err error) IdleStateReason {
	switch {
	case err == nil:
		return IdleStateReasonIdle
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNetworkError):
		return IdleStateReasonProviderResponseProcessingError
	case errors.Is(err, context.Canceled):
		return IdleStateReasonRequestorCancelled
	default:
		return IdleStateReasonDownloadError
	}
}
