// Package influxdb provides InfluxDB connectivity for SeerLink Core.
//
// It wraps the official influxdb-client-go v2 library with SeerLink-specific
// patterns for connection management, state-history writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Device state change history
//   - Remote button event history
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "seerlink",
//	    Bucket: "history",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write a state change
//	client.WriteDeviceState("seerlink-170", "light", 255)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead when the hub emits bursts of updates.
package influxdb
