// Package hub implements the client for HomeSeer-style automation hubs.
//
// The hub exposes two surfaces:
//
//   - An HTTP JSON API for inventory (device and event listings, control
//     metadata) and commands (control-by-value, run-event).
//   - A line-oriented ASCII socket that pushes device value changes as they
//     happen, avoiding any polling.
//
// Client wraps the JSON API and owns the device/event inventory. Listener
// maintains the persistent ASCII connection with automatic reconnection and
// delivers updates to the owning Client, which mutates devices in place and
// invokes their registered callbacks.
//
// # Concurrency
//
// Updates are applied sequentially on the listener's receive goroutine, so
// callbacks observe value changes in hub order. Device value reads are safe
// from any goroutine.
package hub
