package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records a device state change.
//
// This is the primary method for recording state history. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - uniqueID: Scoped device identifier (e.g., "seerlink-170")
//   - category: Device category (e.g., "light", "sensor")
//   - value: The new device value
//
// Example:
//
//	client.WriteDeviceState("seerlink-170", "light", 255)
func (c *Client) WriteDeviceState(uniqueID string, category string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"unique_id": uniqueID,
			"category":  category,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRemoteEvent records a remote button press.
//
// Parameters:
//   - uniqueID: Scoped device identifier of the remote
//   - event: The keypress code reported by the hub
func (c *Client) WriteRemoteEvent(uniqueID string, event float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"remote_event",
		map[string]string{
			"unique_id": uniqueID,
		},
		map[string]interface{}{
			"event": event,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a measurement outside the device-state and
// remote-event shapes, such as scene activations. Tags should stay low
// cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
