// Package sensor feeds readings into the rule engine.
//
// Two ingestion paths exist and can run side by side:
//
// Polling: each configured room gets its own fixed-interval timer that
// fetches the room's readings over HTTP and dispatches them as a
// snapshot. Timers are independent; a slow room never delays another,
// and overlapping ticks are tolerated because the engine serializes
// snapshot processing.
//
// Push: rooms that publish their own readings do so on
// hearth/sensor/<room> over MQTT; the ingestor converts each message to
// a snapshot and dispatches it the same way.
package sensor
