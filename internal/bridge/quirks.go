package bridge

// deviceTypeOverrides maps hub-native device type strings whose capability
// tag misleads classification to their correct category.
//
// A barrier operator exposes on/off controls and would land as a switch; a
// central scene controller is a stateless button emitter, not a sensor; a
// binary sensor reads as a plain sensor but carries on/off semantics.
var deviceTypeOverrides = map[string]Category{
	"Z-Wave Barrier Operator": CategoryCover,
	"Z-Wave Central Scene":    CategoryRemote,
	"Z-Wave Sensor Binary":    CategoryBinarySensor,
}

// overrideFor returns the quirk category for a device type string.
func overrideFor(deviceTypeString string) (Category, bool) {
	cat, ok := deviceTypeOverrides[deviceTypeString]
	return cat, ok
}
