// Package reconcile detects drift between commanded and actual device
// state.
//
// The engine's command cache assumes a device stays in the state it was
// last commanded to. Manual intervention (a wall switch, a vendor app)
// breaks that assumption and would make the dedup check suppress
// commands that are actually needed. On a cron schedule the reconciler
// reads each cached device's real state; where it diverges from the
// cache, the entry is invalidated so the next command goes through.
package reconcile
