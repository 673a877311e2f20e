// Package device manages the inventory of controllable devices.
//
// A device is a controllable endpoint (air conditioner, light, fan)
// installed in a room. The rule engine never addresses devices directly;
// it asks the Directory to resolve a (room, type) pair to the device
// installed there, then drives it through the control client.
//
// At most one device of each type exists per room, enforced by a unique
// index on (room, type). The Directory caches resolutions in memory and
// falls back to the SQLite repository on miss; mutations through the
// Directory invalidate the cache.
package device
