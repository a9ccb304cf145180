package hub

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lastChangePrefix and lastChangeSuffix delimit the hub's JSON date format:
// "/Date(1602201044317)/" with an optional timezone offset before the
// closing parenthesis, e.g. "/Date(1602201044317-0700)/".
const (
	lastChangePrefix = "/Date("
	lastChangeSuffix = ")/"
)

// statusLinePrefix identifies device-change lines on the ASCII socket.
const statusLinePrefix = "DC"

// statusLineFields is the field count of a device-change line:
// DC,ref,newvalue,oldvalue
const statusLineFields = 4

// parseLastChange converts the hub's "/Date(ms)/" timestamp into time.Time.
//
// The millisecond value is UTC; a trailing timezone offset only describes
// the hub's local zone and is ignored.
func parseLastChange(raw string) (time.Time, error) {
	if !strings.HasPrefix(raw, lastChangePrefix) || !strings.HasSuffix(raw, lastChangeSuffix) {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", raw)
	}

	inner := raw[len(lastChangePrefix) : len(raw)-len(lastChangeSuffix)]
	if inner == "" {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", raw)
	}

	// Strip optional timezone offset (+hhmm or -hhmm after the digits).
	// The first character may itself be a sign for negative epochs.
	if idx := strings.IndexAny(inner[1:], "+-"); idx >= 0 {
		inner = inner[:idx+1]
	}

	ms, err := strconv.ParseInt(inner, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", raw, err)
	}

	return time.UnixMilli(ms).UTC(), nil
}

// parseStatusLine parses a device-change line from the ASCII socket.
//
// Format: DC,ref,newvalue,oldvalue
//
// Returns the ref, new value, and previous value. Lines that are not
// device changes (wrong prefix) return ok=false with no error; malformed
// device-change lines return an error.
func parseStatusLine(line string) (ref int, value, prev float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, 0, 0, false, nil
	}

	fields := strings.Split(line, ",")
	if fields[0] != statusLinePrefix {
		return 0, 0, 0, false, nil
	}
	if len(fields) != statusLineFields {
		return 0, 0, 0, false, fmt.Errorf("malformed status line %q: want %d fields, got %d", line, statusLineFields, len(fields))
	}

	ref, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("malformed status line %q: ref: %w", line, err)
	}

	value, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("malformed status line %q: value: %w", line, err)
	}

	prev, err = strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("malformed status line %q: previous value: %w", line, err)
	}

	return ref, value, prev, true, nil
}

// inferCapability derives a device capability from its control values.
//
// on+off+dim → dimmable, on+off → switchable, lock+unlock → lockable,
// anything else → status (read-only).
func inferCapability(controlValues map[int]float64) Capability {
	_, hasOn := controlValues[ControlUseOn]
	_, hasOff := controlValues[ControlUseOff]
	_, hasDim := controlValues[ControlUseDim]
	_, hasLock := controlValues[ControlUseLock]
	_, hasUnlock := controlValues[ControlUseUnlock]

	switch {
	case hasOn && hasOff && hasDim:
		return CapabilityDimmable
	case hasOn && hasOff:
		return CapabilitySwitchable
	case hasLock && hasUnlock:
		return CapabilityLockable
	default:
		return CapabilityStatus
	}
}

// Wire types for the hub's JSON API responses.

// statusResponse is the /JSON?request=getstatus payload.
type statusResponse struct {
	Name    string         `json:"Name"`
	Version string         `json:"Version"`
	Devices []statusDevice `json:"Devices"`
}

// statusDevice is one device entry in the getstatus payload.
type statusDevice struct {
	Ref               int     `json:"ref"`
	Name              string  `json:"name"`
	Location          string  `json:"location"`
	Location2         string  `json:"location2"`
	DeviceTypeString  string  `json:"device_type_string"`
	InterfaceName     *string `json:"interface_name"`
	Value             float64 `json:"value"`
	Status            string  `json:"status"`
	LastChange        string  `json:"last_change"`
	Relationship      int     `json:"relationship"`
	AssociatedDevices []int   `json:"associated_devices"`
}

// controlResponse is the /JSON?request=getcontrol payload.
type controlResponse struct {
	Devices []controlDevice `json:"Devices"`
}

// controlDevice carries the control pairs for one device.
type controlDevice struct {
	Ref          int           `json:"ref"`
	ControlPairs []controlPair `json:"ControlPairs"`
}

// controlPair is one control action the hub accepts for a device.
type controlPair struct {
	ControlUse   int     `json:"ControlUse"`
	ControlValue float64 `json:"ControlValue"`
}

// eventsResponse is the /JSON?request=getevents payload.
// The hub returns a bare array of events.
type eventsResponse []eventEntry

// eventEntry is one runnable event in the getevents payload.
type eventEntry struct {
	Group string `json:"Group"`
	Name  string `json:"Name"`
}

// buildDevice converts a wire device plus its control pairs into a Device.
func buildDevice(sd statusDevice, pairs []controlPair, logger Logger) *Device {
	controlValues := make(map[int]float64, len(pairs))
	for _, pair := range pairs {
		if pair.ControlUse == 0 {
			continue
		}
		// First pair for a use wins; the hub may list duplicates.
		if _, exists := controlValues[pair.ControlUse]; !exists {
			controlValues[pair.ControlUse] = pair.ControlValue
		}
	}

	interfaceName := DefaultInterfaceName
	if sd.InterfaceName != nil && *sd.InterfaceName != "" {
		interfaceName = *sd.InterfaceName
	}

	d := &Device{
		Ref:               sd.Ref,
		Name:              sd.Name,
		Location:          sd.Location,
		Location2:         sd.Location2,
		DeviceTypeString:  sd.DeviceTypeString,
		InterfaceName:     interfaceName,
		Relationship:      sd.Relationship,
		AssociatedDevices: sd.AssociatedDevices,
		Capability:        inferCapability(controlValues),
		controlValues:     controlValues,
		value:             sd.Value,
		status:            sd.Status,
	}

	if sd.LastChange != "" {
		lastChange, err := parseLastChange(sd.LastChange)
		if err != nil {
			if logger != nil {
				logger.Debug("unparseable last_change", "ref", sd.Ref, "raw", sd.LastChange, "error", err)
			}
		} else {
			d.lastChange = lastChange
			d.hasLastChange = true
		}
	}

	return d
}
