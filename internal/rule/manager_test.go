package rule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/devicectl"
)

// mockResolver maps room|type pairs to devices.
type mockResolver struct {
	devices map[string]*device.Device
}

func newMockResolver(devices ...*device.Device) *mockResolver {
	m := &mockResolver{devices: make(map[string]*device.Device)}
	for _, d := range devices {
		m.devices[d.Room+"|"+string(d.Type)] = d
	}
	return m
}

func (m *mockResolver) Resolve(_ context.Context, room string, deviceType device.Type) (*device.Device, error) {
	d, ok := m.devices[device.NormaliseRoom(room)+"|"+string(deviceType)]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

// setCall records one SetState invocation.
type setCall struct {
	deviceID string
	state    devicectl.State
}

// mockController records control traffic and can be made to fail or
// block. Safe for concurrent use; actions in a fan-out run in parallel.
type mockController struct {
	mu       sync.Mutex
	states   map[string]devicectl.State // current state per device
	setCalls []setCall
	getCalls int

	// failSet makes SetState fail for these device IDs. Rollback calls
	// fail too unless failOnceOnly is set.
	failSet      map[string]bool
	failOnceOnly bool
	getErr       error

	// blockSet makes SetState block for these device IDs until the
	// channel is closed.
	blockSet map[string]chan struct{}
}

func newMockController() *mockController {
	return &mockController{
		states:   make(map[string]devicectl.State),
		failSet:  make(map[string]bool),
		blockSet: make(map[string]chan struct{}),
	}
}

func (m *mockController) SetState(_ context.Context, deviceID, _ string, state devicectl.State) error {
	m.mu.Lock()
	block := m.blockSet[deviceID]
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet[deviceID] {
		if m.failOnceOnly {
			m.failSet[deviceID] = false
		}
		return fmt.Errorf("%w: simulated", devicectl.ErrRejected)
	}
	m.setCalls = append(m.setCalls, setCall{deviceID: deviceID, state: state})
	m.states[deviceID] = state
	return nil
}

func (m *mockController) GetState(_ context.Context, deviceID, _ string) (devicectl.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return devicectl.State{}, m.getErr
	}
	return m.states[deviceID], nil
}

// commandedDevices returns the device IDs commanded so far, in order.
func (m *mockController) commandedDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.setCalls))
	for _, c := range m.setCalls {
		ids = append(ids, c.deviceID)
	}
	return ids
}

func livingRoomAC() *device.Device {
	return &device.Device{ID: "ac-living", Room: "living room", Type: device.TypeAC, Host: "http://ac", Enabled: true}
}

func kitchenLight() *device.Device {
	return &device.Device{ID: "light-kitchen", Room: "kitchen", Type: device.TypeLight, Host: "http://light", Enabled: true}
}

func livingRoomLight() *device.Device {
	return &device.Device{ID: "light-living", Room: "living room", Type: device.TypeLight, Host: "http://light", Enabled: true}
}

func newTestManager(t *testing.T, control Controller, devices ...*device.Device) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Directory: newMockResolver(devices...),
		Control:   control,
		Commands:  NewCommandRegistry(),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestStructuralConditionSharing(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	if _, err := m.Register("r1", "if temp > 25 in living room then ac on cool 23"); err != nil {
		t.Fatalf("Register r1 failed: %v", err)
	}
	if _, err := m.Register("r2", "if temperature > 25 in Living Room then ac off"); err != nil {
		t.Fatalf("Register r2 failed: %v", err)
	}

	if m.EventCount() != 1 {
		t.Errorf("expected 1 shared event, got %d", m.EventCount())
	}
	if m.RuleCount() != 2 {
		t.Errorf("expected 2 rules, got %d", m.RuleCount())
	}
}

func TestDistinctConditionsGetDistinctEvents(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on")
	m.Register("r2", "if temp > 26 in living room then ac on")
	m.Register("r3", "if temp >= 25 in living room then ac on")

	if m.EventCount() != 3 {
		t.Errorf("expected 3 events, got %d", m.EventCount())
	}
}

func TestEdgeTriggering(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")

	ctx := context.Background()
	snap := Snapshot{Temp: map[string]float64{"living room": 26}}

	m.ProcessSnapshot(ctx, snap)
	m.ProcessSnapshot(ctx, snap)

	if len(control.setCalls) != 1 {
		t.Errorf("expected exactly 1 command, got %d", len(control.setCalls))
	}
	if control.getCalls != 1 {
		t.Errorf("second snapshot caused external calls: %d state reads", control.getCalls)
	}
}

func TestCommandDedup(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")

	ctx := context.Background()
	if _, err := m.Trigger(ctx, "r1", false); err != nil {
		t.Fatalf("first Trigger failed: %v", err)
	}
	res, err := m.Trigger(ctx, "r1", false)
	if err != nil {
		t.Fatalf("second Trigger failed: %v", err)
	}

	if !res.NoChange {
		t.Error("expected second execution to be a no-op")
	}
	if len(control.setCalls) != 1 {
		t.Errorf("expected exactly 1 external call, got %d", len(control.setCalls))
	}
}

func TestForceBypassesDedup(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")

	ctx := context.Background()
	m.Trigger(ctx, "r1", false)
	res, err := m.Trigger(ctx, "r1", true)
	if err != nil {
		t.Fatalf("forced Trigger failed: %v", err)
	}

	if res.NoChange {
		t.Error("force must bypass the dedup check")
	}
	if len(control.setCalls) != 2 {
		t.Errorf("expected 2 external calls, got %d", len(control.setCalls))
	}
}

func TestRollbackRestoresPreviousState(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	// Establish a known device state with a first successful command.
	m.Register("warm", "if temp < 18 in living room then ac on heat 21")
	ctx := context.Background()
	if _, err := m.Trigger(ctx, "warm", false); err != nil {
		t.Fatalf("priming command failed: %v", err)
	}
	prior := control.states["ac-living"]

	// The next command fails; rollback should re-issue the prior state.
	m.Register("cool", "if temp > 25 in living room then ac on cool 23")
	control.failSet["ac-living"] = true
	control.failOnceOnly = true

	_, err := m.Trigger(ctx, "cool", false)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if !cmdErr.RolledBack {
		t.Error("expected rollback to be reported")
	}

	last := control.setCalls[len(control.setCalls)-1]
	if last.deviceID != "ac-living" || !last.state.Equal(prior) {
		t.Errorf("rollback call = %+v, want prior state %+v", last.state, prior)
	}
}

func TestRollbackFailureAttachedNotMasked(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")
	ctx := context.Background()

	// Both the command and the rollback fail.
	control.failSet["ac-living"] = true

	_, err := m.Trigger(ctx, "r1", false)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.RolledBack {
		t.Error("rollback should not be reported as successful")
	}
	if cmdErr.RollbackErr == nil {
		t.Error("expected rollback failure to be attached")
	}
	if !errors.Is(err, devicectl.ErrRejected) {
		t.Errorf("original error must stay unwrappable, got %v", err)
	}
}

func TestScenarioA(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")
	m.ProcessSnapshot(context.Background(), Snapshot{Temp: map[string]float64{"living room": 26}})

	if len(control.setCalls) != 1 {
		t.Fatalf("expected exactly 1 command, got %d", len(control.setCalls))
	}
	got := control.setCalls[0]
	if got.deviceID != "ac-living" {
		t.Errorf("device = %s, want ac-living", got.deviceID)
	}
	if got.state.Power != "on" || got.state.Mode != "cool" {
		t.Errorf("state = %+v, want on/cool", got.state)
	}
	if got.state.Temperature == nil || *got.state.Temperature != 23 {
		t.Errorf("temperature = %v, want 23", got.state.Temperature)
	}
}

func TestScenarioB(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")
	m.ProcessSnapshot(context.Background(), Snapshot{Temp: map[string]float64{"living room": 24}})

	if len(control.setCalls) != 0 {
		t.Errorf("expected zero commands from a non-qualifying snapshot, got %d", len(control.setCalls))
	}
}

func TestScenarioC(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, kitchenLight())

	m.Register("r1", "if motion in kitchen then light on")

	ctx := context.Background()
	snap := Snapshot{Motion: map[string]bool{"kitchen": true}}

	m.ProcessSnapshot(ctx, snap)
	if len(control.setCalls) != 1 {
		t.Fatalf("expected 1 light-on command, got %d", len(control.setCalls))
	}
	if control.setCalls[0].state.Power != "on" {
		t.Errorf("power = %s, want on", control.setCalls[0].state.Power)
	}

	m.ProcessSnapshot(ctx, snap)
	if len(control.setCalls) != 1 {
		t.Errorf("repeated snapshot issued further commands: %d", len(control.setCalls))
	}
}

func TestSnapshotIgnoresUnmatchedEvents(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC(), kitchenLight())

	m.Register("r1", "if temp > 25 in living room then ac on")
	m.Register("r2", "if motion in kitchen then light on")

	// Snapshot carries only the kitchen motion reading.
	m.ProcessSnapshot(context.Background(), Snapshot{Motion: map[string]bool{"kitchen": true}})

	if len(control.setCalls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(control.setCalls))
	}
	if control.setCalls[0].deviceID != "light-kitchen" {
		t.Errorf("command went to %s", control.setCalls[0].deviceID)
	}
}

func TestFanoutFailureIsolation(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC(), kitchenLight())

	// Two rules on the same condition; the first targets a room with
	// no fan so its lookup fails, the second must still run.
	m.Register("r1", "if temp > 25 in living room then fan on")
	m.Register("r2", "if temp > 25 in living room then ac on cool 23")

	m.ProcessSnapshot(context.Background(), Snapshot{Temp: map[string]float64{"living room": 26}})

	if len(control.setCalls) != 1 {
		t.Fatalf("sibling action did not run: %d commands", len(control.setCalls))
	}
	if control.setCalls[0].deviceID != "ac-living" {
		t.Errorf("command went to %s", control.setCalls[0].deviceID)
	}
}

func TestFanoutSlowDeviceDoesNotStallSiblings(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC(), livingRoomLight())

	m.Register("r1", "if temp > 25 in living room then ac on cool 23")
	m.Register("r2", "if temp > 25 in living room then light on")

	block := make(chan struct{})
	control.blockSet["ac-living"] = block

	done := make(chan struct{})
	go func() {
		m.ProcessSnapshot(context.Background(), Snapshot{Temp: map[string]float64{"living room": 26}})
		close(done)
	}()

	// The light command must land while the AC call is still blocked.
	deadline := time.After(2 * time.Second)
	for !slices.Contains(control.commandedDevices(), "light-living") {
		select {
		case <-deadline:
			t.Fatal("sibling command stalled behind a blocked device call")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case <-done:
		t.Fatal("snapshot completed while a device call was still blocked")
	default:
	}

	close(block)
	<-done

	if got := control.commandedDevices(); len(got) != 2 {
		t.Errorf("expected 2 commands after unblocking, got %v", got)
	}
}

func TestLookupFailureBeforeExternalCalls(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control) // no devices at all

	m.Register("r1", "if motion in kitchen then light on")
	_, err := m.Trigger(context.Background(), "r1", false)

	if !errors.Is(err, ErrLookup) {
		t.Errorf("expected ErrLookup, got %v", err)
	}
	if control.getCalls != 0 || len(control.setCalls) != 0 {
		t.Error("lookup failure must abort before any external call")
	}
}

func TestRemovePrunesEmptyEvent(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp > 25 in living room then ac on")
	m.Register("r2", "if temp > 25 in living room then ac off")

	if err := m.Remove("r1"); err != nil {
		t.Fatalf("Remove r1 failed: %v", err)
	}
	if m.EventCount() != 1 {
		t.Errorf("event pruned while still observed: %d events", m.EventCount())
	}

	if err := m.Remove("r2"); err != nil {
		t.Fatalf("Remove r2 failed: %v", err)
	}
	if m.EventCount() != 0 {
		t.Errorf("expected event pruned, got %d events", m.EventCount())
	}

	if err := m.Remove("r2"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestDeactivationEdgeDedupedByRegistry(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, kitchenLight())

	m.Register("r1", "if motion in kitchen then light on")

	ctx := context.Background()
	m.ProcessSnapshot(ctx, Snapshot{Motion: map[string]bool{"kitchen": true}})
	m.ProcessSnapshot(ctx, Snapshot{Motion: map[string]bool{"kitchen": false}})

	// The deactivation edge notifies, but the desired state matches the
	// last commanded state so no second command goes out.
	if len(control.setCalls) != 1 {
		t.Errorf("expected 1 command across both edges, got %d", len(control.setCalls))
	}
}

func TestExactEqualityComparator(t *testing.T) {
	control := newMockController()
	m := newTestManager(t, control, livingRoomAC())

	m.Register("r1", "if temp == 25 in living room then ac on")

	ctx := context.Background()
	m.ProcessSnapshot(ctx, Snapshot{Temp: map[string]float64{"living room": 25.0001}})
	if len(control.setCalls) != 0 {
		t.Error("== must be exact, near-equal reading fired the rule")
	}

	m.ProcessSnapshot(ctx, Snapshot{Temp: map[string]float64{"living room": 25}})
	if len(control.setCalls) != 1 {
		t.Errorf("exact reading did not fire the rule: %d commands", len(control.setCalls))
	}
}

// mockRuleRepo implements Repository for LoadActive tests.
type mockRuleRepo struct {
	rules []Rule
}

func (m *mockRuleRepo) ListActive(_ context.Context) ([]Rule, error) {
	var out []Rule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) List(_ context.Context) ([]Rule, error) { return m.rules, nil }

func (m *mockRuleRepo) GetByID(_ context.Context, _ string) (*Rule, error) {
	return nil, ErrRuleNotFound
}

func (m *mockRuleRepo) Upsert(_ context.Context, _ *Rule) error { return nil }

func (m *mockRuleRepo) Delete(_ context.Context, _ string) error { return nil }

func TestLoadActive(t *testing.T) {
	repo := &mockRuleRepo{rules: []Rule{
		{ID: "r1", Text: "if temp > 25 in living room then ac on cool 23", Enabled: true},
		{ID: "r2", Text: "if motion in kitchen then light on", Enabled: true},
		{ID: "r3", Text: "if temp > 30 in attic then fan on", Enabled: false},
		{ID: "r4", Text: "this is not a rule", Enabled: true},
	}}

	m, err := NewManager(ManagerConfig{
		Directory:  newMockResolver(),
		Control:    newMockController(),
		Commands:   NewCommandRegistry(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	registered, err := m.LoadActive(context.Background())
	if err != nil {
		t.Fatalf("LoadActive failed: %v", err)
	}

	// r3 is disabled, r4 unparseable; both skipped without failing the load.
	if registered != 2 {
		t.Errorf("expected 2 rules registered, got %d", registered)
	}
	if m.RuleCount() != 2 {
		t.Errorf("expected 2 live rules, got %d", m.RuleCount())
	}
}

func TestHooks(t *testing.T) {
	control := newMockController()

	var fired []Condition
	var issued []IssuedCommand

	m, err := NewManager(ManagerConfig{
		Directory: newMockResolver(kitchenLight()),
		Control:   control,
		Commands:  NewCommandRegistry(),
		Hooks: Hooks{
			EventFired:    func(cond Condition, _ bool, _ float64) { fired = append(fired, cond) },
			CommandIssued: func(cmd IssuedCommand) { issued = append(issued, cmd) },
		},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	m.Register("r1", "if motion in kitchen then light on")
	m.ProcessSnapshot(context.Background(), Snapshot{Motion: map[string]bool{"kitchen": true}})

	if len(fired) != 1 {
		t.Errorf("expected 1 EventFired callback, got %d", len(fired))
	}
	if len(issued) != 1 || issued[0].DeviceID != "light-kitchen" {
		t.Errorf("expected 1 CommandIssued for light-kitchen, got %+v", issued)
	}
}
