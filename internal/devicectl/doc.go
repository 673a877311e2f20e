// Package devicectl is the HTTP client for device control endpoints.
//
// Every device in the inventory exposes a small JSON API on its host:
//
//	GET  /state  returns the device's current state
//	PUT  /state  applies a new state
//
// The client is transport only. It knows nothing about rules or rooms;
// callers resolve the device through the directory and hand its ID and
// host here. Failures are wrapped in typed errors so the rule engine can
// distinguish an unreachable device from a rejected command.
package devicectl
