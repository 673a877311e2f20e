package rule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a registered rule's wiring for later removal.
type Handle struct {
	RuleID string

	cond     Condition
	actionID string
}

// Condition returns the condition the rule's action is attached to.
func (h *Handle) Condition() Condition {
	return h.cond
}

// ManagerConfig carries the Manager's collaborators. Directory,
// Control, and Commands are required; the rest are optional.
type ManagerConfig struct {
	Directory Resolver
	Control   Controller
	Commands  *CommandRegistry

	// Repository loads rules at startup via LoadActive. Optional;
	// a Manager without one only serves rules registered directly.
	Repository Repository

	Logger Logger
	Hooks  Hooks
}

// Manager orchestrates the engine: it parses and wires rules, fans
// sensor snapshots out to matching events, and runs the resulting
// action executions.
//
// One snapshot is processed to completion (every matching event
// updated, every fan-out finished) before the next is accepted.
type Manager struct {
	mu sync.Mutex

	events   *EventRegistry
	commands *CommandRegistry
	runner   commandRunner
	repo     Repository
	logger   Logger
	hooks    Hooks

	// handles tracks live registrations by rule ID.
	handles map[string]*Handle
}

// NewManager creates a Manager from its collaborators.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Directory == nil {
		return nil, errors.New("rule: manager requires a device directory")
	}
	if cfg.Control == nil {
		return nil, errors.New("rule: manager requires a device controller")
	}
	if cfg.Commands == nil {
		return nil, errors.New("rule: manager requires a command registry")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Manager{
		events:   NewEventRegistry(),
		commands: cfg.Commands,
		runner: commandRunner{
			directory: cfg.Directory,
			control:   cfg.Control,
			commands:  cfg.Commands,
			logger:    logger,
			hooks:     cfg.Hooks,
		},
		repo:    cfg.Repository,
		logger:  logger,
		hooks:   cfg.Hooks,
		handles: make(map[string]*Handle),
	}, nil
}

// Register parses rule text and wires it into the engine.
//
// Structurally equal conditions share one event; the rule's action is
// appended to that event's notification list. A parse failure leaves
// the registry unchanged. An empty ruleID gets a generated one.
func (m *Manager) Register(ruleID, text string) (*Handle, error) {
	cond, spec, err := Parse(text)
	if err != nil {
		return nil, err
	}

	if ruleID == "" {
		ruleID = uuid.NewString()
	}

	act, err := newAction(uuid.NewString(), ruleID, spec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handles[ruleID]; exists {
		return nil, fmt.Errorf("rule: %s already registered", ruleID)
	}

	ev := m.events.getOrCreate(cond)
	ev.attach(act)

	handle := &Handle{RuleID: ruleID, cond: cond, actionID: act.ID()}
	m.handles[ruleID] = handle

	m.logger.Info("rule registered",
		"rule_id", ruleID,
		"metric", string(cond.Metric),
		"location", cond.Location,
		"device_type", string(spec.DeviceType),
	)

	return handle, nil
}

// Remove detaches a rule's action from its event. The event is pruned
// once its action list is empty.
func (m *Manager) Remove(ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, ok := m.handles[ruleID]
	if !ok {
		return ErrRuleNotFound
	}

	if ev, found := m.events.get(handle.cond); found {
		if empty := ev.detach(handle.actionID); empty {
			m.events.prune(handle.cond)
		}
	}
	delete(m.handles, ruleID)

	m.logger.Info("rule removed", "rule_id", ruleID)
	return nil
}

// ProcessSnapshot fans a sensor snapshot out to matching events.
//
// Each event whose metric and location appear in the snapshot
// recomputes its state; on a flip, its actions are notified in
// attachment order but each executes on its own goroutine, so a slow
// device call delays only its own action. Actions targeting the same
// device serialise in the command registry. One action's failure never
// stops its siblings. The snapshot is still processed to completion,
// every execution finished, before the next snapshot is accepted.
func (m *Manager) ProcessSnapshot(ctx context.Context, snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wg sync.WaitGroup
	for _, ev := range m.events.all() {
		changed, matched := ev.update(snap)
		if !matched || !changed {
			continue
		}

		cond := ev.Condition()
		m.logger.Debug("event state changed",
			"metric", string(cond.Metric),
			"location", cond.Location,
			"active", ev.State(),
			"value", ev.CurrentValue(),
		)

		if m.hooks.EventFired != nil {
			m.hooks.EventFired(cond, ev.State(), ev.CurrentValue())
		}

		for _, act := range ev.actions {
			act := act
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.execute(ctx, act)
			}()
		}
	}
	wg.Wait()
}

// execute runs one action and logs the outcome.
func (m *Manager) execute(ctx context.Context, act Action) {
	res, err := m.runner.run(ctx, act, false)
	if err != nil {
		m.logger.Error("action execution failed",
			"rule_id", act.RuleID(),
			"error", err,
		)
		return
	}
	if res.NoChange {
		return
	}
	m.logger.Info("command issued",
		"rule_id", act.RuleID(),
		"device_id", res.DeviceID,
	)
}

// Trigger executes a registered rule's action immediately, regardless
// of its event's state. With force set, the dedup check is bypassed to
// push the commanded state back onto a drifted device.
func (m *Manager) Trigger(ctx context.Context, ruleID string, force bool) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, ok := m.handles[ruleID]
	if !ok {
		return Result{}, ErrRuleNotFound
	}

	ev, found := m.events.get(handle.cond)
	if !found {
		return Result{}, ErrRuleNotFound
	}

	for _, act := range ev.actions {
		if act.ID() == handle.actionID {
			return m.runner.run(ctx, act, force)
		}
	}
	return Result{}, ErrRuleNotFound
}

// LoadActive registers every enabled rule from persistence. Rules that
// fail to parse are logged and skipped; one bad rule never blocks the
// rest. Returns the number registered.
func (m *Manager) LoadActive(ctx context.Context) (int, error) {
	if m.repo == nil {
		return 0, errors.New("rule: no repository configured")
	}

	rules, err := m.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading active rules: %w", err)
	}

	registered := 0
	for _, r := range rules {
		if _, err := m.Register(r.ID, r.Text); err != nil {
			m.logger.Warn("skipping unparseable rule",
				"rule_id", r.ID,
				"error", err,
			)
			continue
		}
		registered++
	}

	return registered, nil
}

// EventCount returns the number of distinct live conditions.
func (m *Manager) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.Len()
}

// RuleCount returns the number of registered rules.
func (m *Manager) RuleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
