// Package bridge connects one hub to the host automation platform.
//
// During setup it fetches the hub's full inventory, classifies every device
// into exactly one platform category, and builds the per-category registry
// of entity adapters. After setup it starts the hub's push listener and
// fans device updates out to subscribers; the registry itself never changes
// for the lifetime of the bridge.
//
// # Classification
//
// A device's category is resolved in a fixed order: the interface
// allow-list excludes devices from unlisted hub interfaces; configured
// forced-cover refs override everything else; the quirks table maps known
// hub-native device type strings to their correct category; the remaining
// devices fall back to a capability default (switchable → switch,
// dimmable → light, lockable → lock, read-only → sensor). A device no rule
// claims is excluded with a debug log. The same device never lands in two
// categories.
//
// # Remote devices
//
// Remote-classified devices (central scene controllers) are stateless
// button emitters, not entities. Each gets a dispatcher that forwards
// every genuine keypress as exactly one notification; the replayed value
// delivered when the connection is (re)established is suppressed so
// reconnects never look like button presses.
package bridge
