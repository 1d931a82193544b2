package webhook

import "errors"

var (
	// ErrStoreNil is returned when a dispatcher is created without an endpoint store.
	ErrStoreNil = errors.New("webhook: endpoint store cannot be nil")

	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("webhook: invalid signature")

	// ErrDispatcherNotStarted is returned by Stop when the dispatcher is not running.
	ErrDispatcherNotStarted = errors.New("webhook: dispatcher not started")

	// ErrDispatcherAlreadyStarted is returned by Start when the dispatcher is already running.
	ErrDispatcherAlreadyStarted = errors.New("webhook: dispatcher already started")

	// ErrDispatcherNotRunning indicates a failed healthcheck on a stopped dispatcher.
	ErrDispatcherNotRunning = errors.New("webhook: dispatcher is not running")

	// ErrHealthcheckFailed is the base error for dispatcher health failures.
	ErrHealthcheckFailed = errors.New("webhook: healthcheck failed")
)
