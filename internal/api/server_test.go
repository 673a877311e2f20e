package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fernhill-labs/hearth-core/internal/auth"
	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/devicectl"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/logging"
	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// memDeviceRepo is an in-memory device.Repository.
type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: make(map[string]*device.Device)}
}

func (m *memDeviceRepo) GetByID(_ context.Context, id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDeviceRepo) GetByRoomAndType(_ context.Context, room string, deviceType device.Type) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.Room == device.NormaliseRoom(room) && d.Type == deviceType && d.Enabled {
			cp := *d
			return &cp, nil
		}
	}
	return nil, device.ErrDeviceNotFound
}

func (m *memDeviceRepo) List(_ context.Context) ([]device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []device.Device
	for _, d := range m.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memDeviceRepo) ListByRoom(_ context.Context, room string) ([]device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []device.Device
	for _, d := range m.devices {
		if d.Room == device.NormaliseRoom(room) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDeviceRepo) Create(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.devices {
		if existing.Room == device.NormaliseRoom(d.Room) && existing.Type == d.Type {
			return device.ErrRoomTypeTaken
		}
	}
	d.Room = device.NormaliseRoom(d.Room)
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *memDeviceRepo) Update(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; !ok {
		return device.ErrDeviceNotFound
	}
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *memDeviceRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

// memRuleRepo is an in-memory rule.Repository.
type memRuleRepo struct {
	mu    sync.Mutex
	rules map[string]*rule.Rule
}

func newMemRuleRepo() *memRuleRepo {
	return &memRuleRepo{rules: make(map[string]*rule.Rule)}
}

func (m *memRuleRepo) ListActive(_ context.Context) ([]rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rule.Rule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRuleRepo) List(_ context.Context) ([]rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rule.Rule
	for _, r := range m.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRuleRepo) GetByID(_ context.Context, id string) (*rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, rule.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRuleRepo) Upsert(_ context.Context, r *rule.Rule) error {
	if _, _, err := rule.Parse(r.Text); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRuleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return rule.ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

// recordingController captures device commands.
type recordingController struct {
	mu       sync.Mutex
	setCalls []devicectl.State
}

func (c *recordingController) SetState(_ context.Context, _, _ string, state devicectl.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls = append(c.setCalls, state)
	return nil
}

func (c *recordingController) GetState(_ context.Context, _, _ string) (devicectl.State, error) {
	return devicectl.State{}, nil
}

func (c *recordingController) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.setCalls)
}

type testHarness struct {
	server  *httptest.Server
	token   string
	control *recordingController
	devices *memDeviceRepo
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	hash, err := auth.HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}

	control := &recordingController{}
	deviceRepo := newMemDeviceRepo()
	directory := device.NewDirectory(deviceRepo)

	manager, err := rule.NewManager(rule.ManagerConfig{
		Directory: directory,
		Control:   control,
		Commands:  rule.NewCommandRegistry(),
	})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}

	s, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{
			JWT:   config.JWTConfig{Secret: "test-secret-at-least-32-characters!!", AccessTokenTTL: 60},
			Admin: config.AdminConfig{Username: "admin", PasswordHash: hash},
		},
		Logger:  logging.Default(),
		Manager: manager,
		Rules:   newMemRuleRepo(),
		Devices: directory,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)

	h := &testHarness{server: ts, control: control, devices: deviceRepo}
	h.token = h.login(t, "admin", "test-password")
	return h
}

func (h *testHarness) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	resp, err := http.Post(h.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return lr.Token
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestHealthNoAuth(t *testing.T) {
	h := newTestHarness(t)

	resp, err := http.Get(h.server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health returned %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newTestHarness(t)

	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "wrong"})
	resp, err := http.Post(h.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login returned %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHarness(t)

	resp, err := http.Get(h.server.URL + "/api/v1/rules")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated request returned %d, want 401", resp.StatusCode)
	}
}

func TestRuleLifecycleAndSnapshot(t *testing.T) {
	h := newTestHarness(t)

	// Inventory: an AC in the living room.
	resp := h.do(t, http.MethodPost, "/api/v1/devices", deviceRequest{
		Name: "Living Room AC", Room: "living room", Type: "ac", Host: "http://ac",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("device create returned %d", resp.StatusCode)
	}

	// Create a rule.
	resp = h.do(t, http.MethodPost, "/api/v1/rules", ruleRequest{
		Text: "if temp > 25 in living room then ac on cool 23",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rule create returned %d", resp.StatusCode)
	}
	var created rule.Rule
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	// Inject a qualifying snapshot; exactly one command should go out.
	resp = h.do(t, http.MethodPost, "/api/v1/snapshots", rule.Snapshot{
		Temp: map[string]float64{"living room": 26},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("snapshot returned %d", resp.StatusCode)
	}
	if h.control.count() != 1 {
		t.Errorf("expected 1 device command, got %d", h.control.count())
	}

	// Delete the rule; further snapshots are inert.
	resp = h.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("rule delete returned %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/v1/snapshots", rule.Snapshot{
		Temp: map[string]float64{"living room": 30},
	})
	resp.Body.Close()
	if h.control.count() != 1 {
		t.Errorf("deleted rule still firing: %d commands", h.control.count())
	}
}

func TestCreateRuleRejectsBadText(t *testing.T) {
	h := newTestHarness(t)

	resp := h.do(t, http.MethodPost, "/api/v1/rules", ruleRequest{Text: "switch it all off"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad rule text returned %d, want 422", resp.StatusCode)
	}
}

func TestSnapshotRejectsEmptyBody(t *testing.T) {
	h := newTestHarness(t)

	resp := h.do(t, http.MethodPost, "/api/v1/snapshots", rule.Snapshot{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty snapshot returned %d, want 400", resp.StatusCode)
	}
}

func TestTriggerRule(t *testing.T) {
	h := newTestHarness(t)

	resp := h.do(t, http.MethodPost, "/api/v1/devices", deviceRequest{
		Name: "Kitchen Light", Room: "kitchen", Type: "light", Host: "http://light",
	})
	resp.Body.Close()

	resp = h.do(t, http.MethodPost, "/api/v1/rules", ruleRequest{Text: "if motion in kitchen then light on"})
	var created rule.Rule
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp = h.do(t, http.MethodPost, "/api/v1/rules/"+created.ID+"/trigger", triggerRequest{Force: false})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trigger returned %d", resp.StatusCode)
	}
	if h.control.count() != 1 {
		t.Errorf("expected 1 command from trigger, got %d", h.control.count())
	}
}
