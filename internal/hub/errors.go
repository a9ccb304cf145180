package hub

import "errors"

// Domain-specific errors for hub operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a hub request or the initial
	// listener connection fails.
	ErrConnectionFailed = errors.New("hub: connection failed")

	// ErrNotConnected is returned when the listener is not connected.
	ErrNotConnected = errors.New("hub: not connected")

	// ErrRequestFailed is returned when the hub rejects a JSON API request.
	ErrRequestFailed = errors.New("hub: request failed")

	// ErrDeviceNotFound is returned when a ref does not match any device.
	ErrDeviceNotFound = errors.New("hub: device not found")

	// ErrEventNotFound is returned when a group/name pair does not match
	// any event.
	ErrEventNotFound = errors.New("hub: event not found")

	// ErrUnsupportedAction is returned when a typed command is issued to a
	// device whose control pairs do not support it.
	ErrUnsupportedAction = errors.New("hub: action not supported by device")

	// ErrInvalidValue is returned when a control value is out of range.
	ErrInvalidValue = errors.New("hub: invalid control value")
)
