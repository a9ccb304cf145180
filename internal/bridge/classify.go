package bridge

import (
	"github.com/seerlink/seerlink-core/internal/hub"
)

// Category is the platform category a device or event is bridged as.
// Every included device lands in exactly one category.
type Category string

const (
	CategoryBinarySensor Category = "binary_sensor"
	CategoryCover        Category = "cover"
	CategoryLight        Category = "light"
	CategoryLock         Category = "lock"
	CategoryRemote       Category = "remote"
	CategorySensor       Category = "sensor"
	CategorySwitch       Category = "switch"
	CategoryScene        Category = "scene"
)

// Categories lists all device categories in stable order.
// CategoryScene is excluded: scenes come from events, not devices.
var Categories = []Category{
	CategoryBinarySensor,
	CategoryCover,
	CategoryLight,
	CategoryLock,
	CategoryRemote,
	CategorySensor,
	CategorySwitch,
}

// Rules holds the configured classification inputs.
type Rules struct {
	// AllowedInterfaces restricts devices to the listed hub interfaces.
	// Interfaces are opt-in; an empty list excludes every device.
	AllowedInterfaces []string

	// ForcedCovers lists refs classified as covers regardless of type.
	ForcedCovers []int

	// AllowEvents enables bridging hub events as scenes.
	AllowEvents bool

	// AllowedEventGroups restricts events to the listed groups.
	// Empty means all groups are allowed.
	AllowedEventGroups []string
}

// ClassifyDevice resolves a device's platform category.
//
// Resolution order: interface allow-list, forced-cover override, quirks
// table, capability default. Devices no rule claims are excluded
// (ok=false). The function is deterministic: the same device and rules
// always yield the same result.
func ClassifyDevice(d *hub.Device, rules Rules) (Category, bool) {
	if !interfaceAllowed(d.InterfaceName, rules.AllowedInterfaces) {
		return "", false
	}

	for _, ref := range rules.ForcedCovers {
		if ref == d.Ref {
			return CategoryCover, true
		}
	}

	if cat, ok := overrideFor(d.DeviceTypeString); ok {
		return cat, true
	}

	switch d.Capability {
	case hub.CapabilitySwitchable:
		return CategorySwitch, true
	case hub.CapabilityDimmable:
		return CategoryLight, true
	case hub.CapabilityLockable:
		return CategoryLock, true
	case hub.CapabilityStatus:
		return CategorySensor, true
	default:
		return "", false
	}
}

// ClassifyEvent reports whether a hub event is bridged as a scene.
//
// Events are excluded entirely when AllowEvents is false, and filtered by
// group when an allowed-group list is configured.
func ClassifyEvent(e hub.Event, rules Rules) bool {
	if !rules.AllowEvents {
		return false
	}
	if len(rules.AllowedEventGroups) == 0 {
		return true
	}
	for _, group := range rules.AllowedEventGroups {
		if group == e.Group {
			return true
		}
	}
	return false
}

// interfaceAllowed checks a device's interface against the allow-list.
// An empty list admits nothing: interfaces are opt-in, and deselecting
// them all excludes every device.
func interfaceAllowed(name string, allowed []string) bool {
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}
