// Package database provides the SQLite connection and migration runner
// for Hearth Core.
//
// SQLite is opened with WAL mode and a busy timeout, and the connection
// pool is restricted to a single writer. Schema migrations are embedded
// into the binary by the top-level migrations package and applied at
// startup, each in its own transaction.
package database
