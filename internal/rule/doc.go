// Package rule implements the event-condition-action automation engine.
//
// A rule is a single line of text, e.g.
//
//	if temp > 25 in living room then ac on cool 23
//
// Registration parses the text into a Condition and an ActionSpec, then
// wires them into live objects: conditions are interned in an event
// registry so that two rules with structurally equal conditions share
// one Event, and each rule contributes one Action to its Event's
// ordered observer list.
//
// Sensor snapshots flow in through the Manager. Each matching Event
// recomputes its boolean state from the snapshot; only a state flip
// (edge trigger) fans out to the attached Actions. An Action resolves
// its target device, skips the command when it matches the last
// commanded state in the CommandRegistry, and otherwise captures the
// device's current state before issuing the command so a failure can
// be rolled back best-effort.
//
// The engine processes one snapshot to completion before the next.
// Within a snapshot, actions execute concurrently so a slow device
// call delays only its own action; command traffic to any single
// device is serialized by the CommandRegistry.
package rule
