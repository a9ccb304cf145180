package hub

import (
	"sync"
	"time"
)

// DefaultInterfaceName substitutes for devices whose interface field is
// null in the hub's JSON payload.
const DefaultInterfaceName = "HomeSeer"

// Relationship values reported by the hub for each device.
const (
	RelationshipNotSet     = 0
	RelationshipRoot       = 2
	RelationshipStandalone = 3
	RelationshipChild      = 4
)

// Control use values from the hub's control pair metadata.
// These identify what a control pair does when sent to the device.
const (
	ControlUseOn     = 1
	ControlUseOff    = 2
	ControlUseDim    = 3
	ControlUseLock   = 18
	ControlUseUnlock = 19
)

// Capability describes what a device's control pairs allow.
// It is inferred once at inventory time and drives classification.
type Capability string

const (
	// CapabilityStatus marks a read-only device (no usable control pairs).
	CapabilityStatus Capability = "status"

	// CapabilitySwitchable marks a device with on and off controls.
	CapabilitySwitchable Capability = "switchable"

	// CapabilityDimmable marks a device with on, off, and dim controls.
	CapabilityDimmable Capability = "dimmable"

	// CapabilityLockable marks a device with lock and unlock controls.
	CapabilityLockable Capability = "lockable"
)

// Update describes a single device value change delivered to callbacks.
type Update struct {
	// Ref is the hub's numeric device reference.
	Ref int

	// Value is the new device value.
	Value float64

	// PrevValue is the value before this change.
	PrevValue float64

	// ConnectionRefresh marks updates produced by the full re-sync that
	// follows a (re)connection, as opposed to genuine hub pushes.
	ConnectionRefresh bool
}

// UpdateCallback receives device updates.
// Callbacks run on the listener goroutine and must not block.
type UpdateCallback func(Update)

// deviceCallback pairs a callback with its delivery options.
type deviceCallback struct {
	fn                UpdateCallback
	suppressOnConnect bool
}

// Device is one device in the hub's inventory.
//
// Identity and metadata fields are populated once during Initialize and
// never change. Value, status, and last-change mutate in place as the
// listener delivers updates.
type Device struct {
	Ref               int
	Name              string
	Location          string
	Location2         string
	DeviceTypeString  string
	InterfaceName     string
	Relationship      int
	AssociatedDevices []int
	Capability        Capability

	// controlValues maps a control use to the value that triggers it.
	controlValues map[int]float64

	mu            sync.RWMutex
	value         float64
	status        string
	lastChange    time.Time
	hasLastChange bool

	callbackMu sync.RWMutex
	callbacks  []deviceCallback
}

// Value returns the device's current value.
func (d *Device) Value() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Status returns the device's current status text.
func (d *Device) Status() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// LastChange returns the time of the last value change and whether the hub
// reported one.
func (d *Device) LastChange() (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastChange, d.hasLastChange
}

// ControlValue returns the value that triggers the given control use,
// and whether the device has such a control pair.
func (d *Device) ControlValue(use int) (float64, bool) {
	v, ok := d.controlValues[use]
	return v, ok
}

// IsChild reports whether the device is a child of a root device.
func (d *Device) IsChild() bool {
	return d.Relationship == RelationshipChild
}

// ParentRef returns the ref of the device's parent for child devices.
// The hub lists a child's parent as its first associated device.
func (d *Device) ParentRef() (int, bool) {
	if !d.IsChild() || len(d.AssociatedDevices) == 0 {
		return 0, false
	}
	return d.AssociatedDevices[0], true
}

// OnUpdate registers a callback for value changes.
//
// When suppressOnConnect is true the callback is not invoked for the
// re-sync updates that follow a (re)connection, only for genuine pushes.
func (d *Device) OnUpdate(fn UpdateCallback, suppressOnConnect bool) {
	d.callbackMu.Lock()
	d.callbacks = append(d.callbacks, deviceCallback{fn: fn, suppressOnConnect: suppressOnConnect})
	d.callbackMu.Unlock()
}

// ApplyUpdate stores a new value and invokes registered callbacks.
//
// Called only from the listener goroutine (and from connection re-sync),
// so callbacks observe updates in order.
func (d *Device) ApplyUpdate(value float64, status string, lastChange time.Time, connectionRefresh bool) {
	d.mu.Lock()
	prev := d.value
	d.value = value
	if status != "" {
		d.status = status
	}
	if !lastChange.IsZero() {
		d.lastChange = lastChange
		d.hasLastChange = true
	}
	d.mu.Unlock()

	update := Update{
		Ref:               d.Ref,
		Value:             value,
		PrevValue:         prev,
		ConnectionRefresh: connectionRefresh,
	}

	d.callbackMu.RLock()
	callbacks := make([]deviceCallback, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.callbackMu.RUnlock()

	for _, cb := range callbacks {
		if connectionRefresh && cb.suppressOnConnect {
			continue
		}
		cb.fn(update)
	}
}

// Event is one runnable event (scene) in the hub's inventory.
type Event struct {
	Group string
	Name  string
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
