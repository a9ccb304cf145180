package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seerlink/seerlink-core/internal/hub"
)

// ParentInfo identifies the root device a child entity belongs to.
type ParentInfo struct {
	Ref  int
	Name string
}

// nameContext is the template context for rendering display names.
// Field names are part of the name_template configuration contract.
type nameContext struct {
	Ref              int
	Name             string
	Location         string
	Location2        string
	DeviceTypeString string
	Value            float64
	Status           string
}

// Entity is the uniform facade over one classified device.
//
// Identity (unique id, display name inputs, category) is fixed at setup;
// value, status, and last-change track the device as updates arrive.
type Entity struct {
	device   *hub.Device
	bridge   *Bridge
	category Category
	commands any
}

// newEntity builds the entity and its category command strategy.
func newEntity(device *hub.Device, b *Bridge, category Category) *Entity {
	e := &Entity{
		device:   device,
		bridge:   b,
		category: category,
	}

	switch category {
	case CategorySwitch:
		e.commands = SwitchCommands{client: b.client, ref: device.Ref}
	case CategoryLight:
		e.commands = LightCommands{SwitchCommands: SwitchCommands{client: b.client, ref: device.Ref}}
	case CategoryLock:
		e.commands = LockCommands{client: b.client, ref: device.Ref}
	case CategoryCover:
		e.commands = CoverCommands{client: b.client, device: device}
	default:
		// Sensors and binary sensors are read-only.
	}

	return e
}

// Ref returns the hub's numeric device reference.
func (e *Entity) Ref() int {
	return e.device.Ref
}

// Category returns the entity's platform category.
func (e *Entity) Category() Category {
	return e.category
}

// Device returns the underlying hub device.
func (e *Entity) Device() *hub.Device {
	return e.device
}

// UniqueID returns the entity's identifier, scoped by the configured
// namespace: "{namespace}-{ref}". Stable across restarts as long as the
// namespace is unchanged.
func (e *Entity) UniqueID() string {
	return fmt.Sprintf("%s-%d", e.bridge.namespace, e.device.Ref)
}

// DisplayName renders the configured name template against the device.
//
// The template is parsed and test-rendered at config load, so failures
// here indicate device data the probe could not anticipate; the device
// name is used as a fallback rather than failing the update path.
func (e *Entity) DisplayName() string {
	var sb strings.Builder
	err := e.bridge.nameTemplate.Execute(&sb, nameContext{
		Ref:              e.device.Ref,
		Name:             e.device.Name,
		Location:         e.device.Location,
		Location2:        e.device.Location2,
		DeviceTypeString: e.device.DeviceTypeString,
		Value:            e.device.Value(),
		Status:           e.device.Status(),
	})
	if err != nil {
		e.bridge.logWarn("name template render failed", "ref", e.device.Ref, "error", err)
		return e.device.Name
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Attributes returns the entity's exported attribute map.
// last_change is present only when the hub reported one.
func (e *Entity) Attributes() map[string]any {
	attrs := map[string]any{
		"ref":                e.device.Ref,
		"location":           e.device.Location,
		"location2":          e.device.Location2,
		"device_type_string": e.device.DeviceTypeString,
		"value":              e.device.Value(),
		"status":             e.device.Status(),
	}

	if lastChange, ok := e.device.LastChange(); ok {
		attrs["last_change"] = lastChange.Format(time.RFC3339)
	}

	return attrs
}

// Available reports whether the hub connection is live.
// Delegates to the bridge; entities have no availability of their own.
func (e *Entity) Available() bool {
	return e.bridge.Available()
}

// Subscribe registers a callback for this entity's device updates.
// Connection re-sync updates are delivered (callers want current state).
func (e *Entity) Subscribe(fn hub.UpdateCallback) {
	e.device.OnUpdate(fn, false)
}

// ParentInfo resolves the entity's parent device for child devices.
//
// A child's parent is its first associated device. Returns nil for root
// and standalone devices; a dangling parent ref is logged and also
// returns nil rather than failing.
func (e *Entity) ParentInfo() *ParentInfo {
	parentRef, ok := e.device.ParentRef()
	if !ok {
		return nil
	}

	parent, found := e.bridge.client.Device(parentRef)
	if !found {
		e.bridge.logWarn("dangling parent reference", "ref", e.device.Ref, "parent_ref", parentRef)
		return nil
	}

	return &ParentInfo{Ref: parent.Ref, Name: parent.Name}
}

// Commands returns the entity's category command strategy, or nil for
// read-only categories.
func (e *Entity) Commands() any {
	return e.commands
}

// SwitchCommands drives a switchable device.
type SwitchCommands struct {
	client HubClient
	ref    int
}

// TurnOn switches the device on.
func (s SwitchCommands) TurnOn(ctx context.Context) error {
	return s.client.TurnOn(ctx, s.ref)
}

// TurnOff switches the device off.
func (s SwitchCommands) TurnOff(ctx context.Context) error {
	return s.client.TurnOff(ctx, s.ref)
}

// IsOn reports whether the device's value is non-zero.
func (s SwitchCommands) IsOn(d *hub.Device) bool {
	return d.Value() != 0
}

// LightCommands drives a dimmable device: switch behavior plus brightness.
type LightCommands struct {
	SwitchCommands
}

// SetBrightness dims the device to a percentage between 0 and 100.
func (l LightCommands) SetBrightness(ctx context.Context, percent int) error {
	return l.client.Dim(ctx, l.ref, percent)
}

// LockCommands drives a lockable device.
type LockCommands struct {
	client HubClient
	ref    int
}

// Lock engages the lock.
func (l LockCommands) Lock(ctx context.Context) error {
	return l.client.Lock(ctx, l.ref)
}

// Unlock disengages the lock.
func (l LockCommands) Unlock(ctx context.Context) error {
	return l.client.Unlock(ctx, l.ref)
}

// CoverCommands drives a cover (barrier operator or forced cover).
// The hub models open/close as the on/off control pair.
type CoverCommands struct {
	client HubClient
	device *hub.Device
}

// Open raises the cover.
func (c CoverCommands) Open(ctx context.Context) error {
	return c.client.TurnOn(ctx, c.device.Ref)
}

// Close lowers the cover.
func (c CoverCommands) Close(ctx context.Context) error {
	return c.client.TurnOff(ctx, c.device.Ref)
}

// SetPosition moves a multilevel cover to a percentage between 0 and 100.
// Barrier operators without a dim control reject this.
func (c CoverCommands) SetPosition(ctx context.Context, percent int) error {
	return c.client.Dim(ctx, c.device.Ref, percent)
}

// SceneEntity is a runnable hub event bridged as a scene.
type SceneEntity struct {
	event  hub.Event
	client HubClient
}

// Group returns the scene's hub event group.
func (s *SceneEntity) Group() string {
	return s.event.Group
}

// Name returns the scene's hub event name.
func (s *SceneEntity) Name() string {
	return s.event.Name
}

// Activate runs the scene on the hub.
func (s *SceneEntity) Activate(ctx context.Context) error {
	return s.client.RunEvent(ctx, s.event.Group, s.event.Name)
}
