package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyInventory is returned by Setup when the hub reports zero
	// devices and zero events. Distinct from connectivity failures: the
	// hub answered, but a bridge over nothing is a misconfiguration.
	ErrEmptyInventory = errors.New("bridge: hub inventory is empty")

	// ErrNotInitialized is returned when an operation requires a completed
	// Setup.
	ErrNotInitialized = errors.New("bridge: not initialized")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrStopped is returned when an operation is attempted after Stop.
	ErrStopped = errors.New("bridge: stopped")

	// ErrUnknownDevice is returned when a ref is not in the registry.
	ErrUnknownDevice = errors.New("bridge: device not in registry")

	// ErrUnknownScene is returned when a group/name pair is not in the
	// scene registry.
	ErrUnknownScene = errors.New("bridge: scene not in registry")

	// ErrUnsupportedAction is returned when an action does not apply to a
	// device's category.
	ErrUnsupportedAction = errors.New("bridge: action not supported for category")

	// ErrNotAvailable is returned when the push listener is down.
	ErrNotAvailable = errors.New("bridge: hub connection not available")
)
