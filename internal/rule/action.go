package rule

import (
	"context"
	"fmt"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/devicectl"
)

// Resolver maps a (room, device type) pair to the device installed
// there. Implemented by device.Directory.
type Resolver interface {
	Resolve(ctx context.Context, room string, deviceType device.Type) (*device.Device, error)
}

// Controller drives device control endpoints. Implemented by
// devicectl.Client.
type Controller interface {
	SetState(ctx context.Context, deviceID, host string, state devicectl.State) error
	GetState(ctx context.Context, deviceID, host string) (devicectl.State, error)
}

// Action is one rule's observer on an event: a device target plus the
// desired parameters to command when the event fires.
//
// The three variants share execution machinery and differ only in how
// they shape the wire state for their device kind.
type Action interface {
	// ID identifies this action within its event's list.
	ID() string

	// RuleID is the rule that contributed this action.
	RuleID() string

	// Spec returns the parsed action parameters.
	Spec() ActionSpec

	// desiredState builds the wire state this action commands.
	desiredState() devicectl.State
}

// actionBase carries the fields common to all variants.
type actionBase struct {
	id     string
	ruleID string
	spec   ActionSpec
}

func (a *actionBase) ID() string       { return a.id }
func (a *actionBase) RuleID() string   { return a.ruleID }
func (a *actionBase) Spec() ActionSpec { return a.spec }

// acAction commands an air conditioner: power, setpoint, mode.
type acAction struct{ actionBase }

func (a *acAction) desiredState() devicectl.State {
	s := devicectl.State{Power: powerWord(a.spec.Power), Mode: a.spec.Mode, Extra: a.spec.Extra}
	if a.spec.HasTemperature {
		t := a.spec.Temperature
		s.Temperature = &t
	}
	return s
}

// lightAction commands a light: power, optional scene mode. A numeric
// parameter rides the temperature field as colour temperature.
type lightAction struct{ actionBase }

func (a *lightAction) desiredState() devicectl.State {
	s := devicectl.State{Power: powerWord(a.spec.Power), Mode: a.spec.Mode, Extra: a.spec.Extra}
	if a.spec.HasTemperature {
		t := a.spec.Temperature
		s.Temperature = &t
	}
	return s
}

// fanAction commands a fan: power, optional named speed as mode.
type fanAction struct{ actionBase }

func (a *fanAction) desiredState() devicectl.State {
	s := devicectl.State{Power: powerWord(a.spec.Power), Mode: a.spec.Mode, Extra: a.spec.Extra}
	if a.spec.HasTemperature {
		t := a.spec.Temperature
		s.Temperature = &t
	}
	return s
}

// newAction builds the variant matching the parsed device type.
func newAction(id, ruleID string, spec ActionSpec) (Action, error) {
	base := actionBase{id: id, ruleID: ruleID, spec: spec}
	switch spec.DeviceType {
	case device.TypeAC:
		return &acAction{base}, nil
	case device.TypeLight:
		return &lightAction{base}, nil
	case device.TypeFan:
		return &fanAction{base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceType, spec.DeviceType)
	}
}

func powerWord(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Result reports what an execution did.
type Result struct {
	// NoChange is true when the desired state matched the last
	// commanded state and no external call was made.
	NoChange bool

	// DeviceID is the resolved target.
	DeviceID string
}

// IssuedCommand describes a command that reached a device, for mirroring
// to telemetry and event subscribers.
type IssuedCommand struct {
	RuleID     string
	ActionID   string
	DeviceID   string
	Room       string
	DeviceType device.Type
	State      devicectl.State
	Time       time.Time
}

// Hooks are optional callbacks invoked by the engine. Nil fields are
// skipped. Callbacks should be quick.
type Hooks struct {
	// EventFired is called on every state flip, before actions run,
	// on the dispatch goroutine.
	EventFired func(cond Condition, active bool, value float64)

	// CommandIssued is called after a successful device command, on
	// the executing action's goroutine. Actions in a fan-out run
	// concurrently, so implementations must be safe for concurrent use.
	CommandIssued func(cmd IssuedCommand)
}

// commandRunner executes actions against the outside world.
type commandRunner struct {
	directory Resolver
	control   Controller
	commands  *CommandRegistry
	logger    Logger
	hooks     Hooks
}

// run executes one action.
//
// Steps: resolve the target, then inside the device's critical section
// check the dedup cache, capture the device's current state, issue the
// command, and record it. force bypasses the dedup check, used to
// correct drift between assumed and actual device state.
//
// On command failure the captured prior state is written back
// best-effort; a rollback failure is logged and attached to the
// returned *CommandError, never masking the original error.
func (r *commandRunner) run(ctx context.Context, act Action, force bool) (Result, error) {
	spec := act.Spec()

	dev, err := r.directory.Resolve(ctx, spec.Location, spec.DeviceType)
	if err != nil {
		return Result{}, fmt.Errorf("%w: no %s in %q: %w", ErrLookup, spec.DeviceType, spec.Location, err)
	}

	desired := act.desiredState()
	result := Result{DeviceID: dev.ID}

	err = r.commands.WithDevice(dev.ID, func() error {
		if entry, ok := r.commands.Get(dev.ID); ok && !force && entry.State.Equal(desired) {
			result.NoChange = true
			r.logger.Debug("command skipped, matches last commanded state",
				"device_id", dev.ID,
				"rule_id", act.RuleID(),
			)
			return nil
		}

		// Capture the device's actual state before mutating it. If the
		// read fails the command still proceeds, without rollback cover.
		previous, readErr := r.control.GetState(ctx, dev.ID, dev.Host)
		hasPrevious := readErr == nil
		if readErr != nil {
			r.logger.Warn("could not read device state before command, rollback unavailable",
				"device_id", dev.ID,
				"error", readErr,
			)
		}

		if setErr := r.control.SetState(ctx, dev.ID, dev.Host, desired); setErr != nil {
			cmdErr := &CommandError{DeviceID: dev.ID, Err: setErr}
			if hasPrevious {
				if rbErr := r.control.SetState(ctx, dev.ID, dev.Host, previous); rbErr != nil {
					cmdErr.RollbackErr = rbErr
					r.logger.Error("rollback failed",
						"device_id", dev.ID,
						"error", rbErr,
					)
				} else {
					cmdErr.RolledBack = true
				}
			}
			return cmdErr
		}

		r.commands.Set(dev.ID, desired)

		if r.hooks.CommandIssued != nil {
			r.hooks.CommandIssued(IssuedCommand{
				RuleID:     act.RuleID(),
				ActionID:   act.ID(),
				DeviceID:   dev.ID,
				Room:       dev.Room,
				DeviceType: dev.Type,
				State:      desired,
				Time:       time.Now().UTC(),
			})
		}

		return nil
	})

	return result, err
}
