package device

import (
	"context"
	"errors"
	"testing"
)

// mockRepository implements Repository for Directory tests.
type mockRepository struct {
	devices map[string]*Device // keyed by room|type
	calls   int
}

func newMockRepository(devices ...*Device) *mockRepository {
	m := &mockRepository{devices: make(map[string]*Device)}
	for _, d := range devices {
		m.devices[cacheKey(d.Room, d.Type)] = d
	}
	return m
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	for _, d := range m.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, ErrDeviceNotFound
}

func (m *mockRepository) GetByRoomAndType(_ context.Context, room string, deviceType Type) (*Device, error) {
	m.calls++
	d, ok := m.devices[cacheKey(room, deviceType)]
	if !ok || !d.Enabled {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

func (m *mockRepository) List(_ context.Context) ([]Device, error) {
	var out []Device
	for _, d := range m.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockRepository) ListByRoom(_ context.Context, room string) ([]Device, error) {
	var out []Device
	for _, d := range m.devices {
		if d.Room == NormaliseRoom(room) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, d *Device) error {
	key := cacheKey(d.Room, d.Type)
	if _, exists := m.devices[key]; exists {
		return ErrRoomTypeTaken
	}
	m.devices[key] = d
	return nil
}

func (m *mockRepository) Update(_ context.Context, d *Device) error {
	m.devices[cacheKey(d.Room, d.Type)] = d
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	for key, d := range m.devices {
		if d.ID == id {
			delete(m.devices, key)
			return nil
		}
	}
	return ErrDeviceNotFound
}

func testDevice() *Device {
	return &Device{
		ID:      "dev-1",
		Name:    "Living Room AC",
		Room:    "living room",
		Type:    TypeAC,
		Host:    "http://10.0.30.14:8007",
		Enabled: true,
	}
}

func TestDirectoryResolve(t *testing.T) {
	repo := newMockRepository(testDevice())
	dir := NewDirectory(repo)

	d, err := dir.Resolve(context.Background(), "living room", TypeAC)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.ID != "dev-1" {
		t.Errorf("expected dev-1, got %s", d.ID)
	}
}

func TestDirectoryResolveCaches(t *testing.T) {
	repo := newMockRepository(testDevice())
	dir := NewDirectory(repo)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := dir.Resolve(ctx, "living room", TypeAC); err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
	}

	if repo.calls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.calls)
	}
}

func TestDirectoryResolveCaseInsensitive(t *testing.T) {
	repo := newMockRepository(testDevice())
	dir := NewDirectory(repo)

	d, err := dir.Resolve(context.Background(), "Living Room", TypeAC)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.ID != "dev-1" {
		t.Errorf("expected dev-1, got %s", d.ID)
	}
}

func TestDirectoryResolveNotFound(t *testing.T) {
	repo := newMockRepository(testDevice())
	dir := NewDirectory(repo)

	_, err := dir.Resolve(context.Background(), "garage", TypeFan)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDirectoryResolveReturnsCopy(t *testing.T) {
	repo := newMockRepository(testDevice())
	dir := NewDirectory(repo)

	ctx := context.Background()
	first, err := dir.Resolve(ctx, "living room", TypeAC)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	first.Host = "mutated"

	second, err := dir.Resolve(ctx, "living room", TypeAC)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if second.Host != "http://10.0.30.14:8007" {
		t.Errorf("cache was mutated through returned pointer: %s", second.Host)
	}
}

func TestDirectoryUpdateInvalidatesCache(t *testing.T) {
	d := testDevice()
	repo := newMockRepository(d)
	dir := NewDirectory(repo)

	ctx := context.Background()
	if _, err := dir.Resolve(ctx, "living room", TypeAC); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	updated := *d
	updated.Host = "http://10.0.30.99:8007"
	if err := dir.Update(ctx, &updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	resolved, err := dir.Resolve(ctx, "living room", TypeAC)
	if err != nil {
		t.Fatalf("Resolve after update failed: %v", err)
	}
	if resolved.Host != "http://10.0.30.99:8007" {
		t.Errorf("expected updated host, got %s", resolved.Host)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"ac", TypeAC, false},
		{"AC", TypeAC, false},
		{"light", TypeLight, false},
		{"fan", TypeFan, false},
		{"heater", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
