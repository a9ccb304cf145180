package mqtt

import "fmt"

// Topic prefixes for the SeerLink MQTT surface.
//
// All topics use the flat scheme: seerlink/{category}/{suffix}
const (
	// TopicPrefix is the base for all SeerLink topics.
	TopicPrefix = "seerlink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "seerlink/system"
)

// Topics provides builders for SeerLink MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState(170)
//	// Returns: "seerlink/state/170"
type Topics struct{}

// DeviceState returns the topic for device state updates.
//
// Example: seerlink/state/170
func (Topics) DeviceState(ref int) string {
	return fmt.Sprintf("%s/state/%d", TopicPrefix, ref)
}

// RemoteEvent returns the topic for remote button events.
//
// Example: seerlink/event/remote
func (Topics) RemoteEvent() string {
	return fmt.Sprintf("%s/event/remote", TopicPrefix)
}

// SceneActivated returns the topic for scene activation events.
//
// Example: seerlink/event/scene/Evening Lights
func (Topics) SceneActivated(name string) string {
	return fmt.Sprintf("%s/event/scene/%s", TopicPrefix, name)
}

// Command returns the topic for inbound device commands.
//
// Example: seerlink/command/control
func (Topics) Command() string {
	return fmt.Sprintf("%s/command/control", TopicPrefix)
}

// SystemStatus returns the system status topic.
//
// Example: seerlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemAvailability returns the hub availability topic.
//
// Example: seerlink/system/availability
func (Topics) SystemAvailability() string {
	return fmt.Sprintf("%s/availability", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: seerlink/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all SeerLink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: seerlink/#
func (Topics) AllTopics() string {
	return "seerlink/#"
}
