package rule

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates malformed rule text. Registration is aborted
	// and the registry is left unchanged.
	ErrParse = errors.New("rule: parse error")

	// ErrUnknownMetric indicates the condition names a metric the
	// engine does not know.
	ErrUnknownMetric = errors.New("rule: unknown metric")

	// ErrUnknownDeviceType indicates the action names a device type the
	// engine does not know.
	ErrUnknownDeviceType = errors.New("rule: unknown device type")

	// ErrLookup indicates the action's target device could not be
	// resolved; execution aborted before any external call.
	ErrLookup = errors.New("rule: device lookup failed")

	// ErrRuleNotFound indicates the referenced rule does not exist.
	ErrRuleNotFound = errors.New("rule: not found")
)

// CommandError reports a failed device command, carrying the rollback
// outcome alongside the original failure. The rollback never masks the
// triggering error; its own failure is recorded here and logged by the
// caller.
type CommandError struct {
	DeviceID string

	// Err is the original control-call failure.
	Err error

	// RolledBack is true when the device was restored to its prior state.
	RolledBack bool

	// RollbackErr is set when a rollback was attempted and also failed.
	RollbackErr error
}

func (e *CommandError) Error() string {
	switch {
	case e.RolledBack:
		return fmt.Sprintf("rule: command to %s failed (rolled back): %v", e.DeviceID, e.Err)
	case e.RollbackErr != nil:
		return fmt.Sprintf("rule: command to %s failed (rollback also failed: %v): %v", e.DeviceID, e.RollbackErr, e.Err)
	default:
		return fmt.Sprintf("rule: command to %s failed: %v", e.DeviceID, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
