// Package logging provides structured logging for Hearth Core.
//
// It wraps log/slog with configuration-driven level and format selection
// and default fields (service name, version). Consumer packages that need
// logging declare their own small Logger interface; *logging.Logger
// satisfies those interfaces.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package logging
