package device

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of controllable device.
type Type string

// Device types known to the rule engine.
const (
	TypeAC    Type = "ac"
	TypeLight Type = "light"
	TypeFan   Type = "fan"
)

// ParseType converts a string to a device Type.
// Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(s)) {
	case TypeAC:
		return TypeAC, nil
	case TypeLight:
		return TypeLight, nil
	case TypeFan:
		return TypeFan, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidDevice, s)
	}
}

// Device represents a controllable endpoint installed in a room.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Room is the normalised (lowercase) location the device serves.
	Room string `json:"room"`

	// Type is the device kind: ac, light, or fan.
	Type Type `json:"type"`

	// Host is the base URL of the device's control endpoint,
	// e.g. "http://10.0.30.14:8007".
	Host string `json:"host"`

	// Enabled devices are resolvable by the rule engine; disabled
	// devices stay in inventory but never receive commands.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the device has the required fields.
func (d *Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if d.Room == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidDevice)
	}
	if _, err := ParseType(string(d.Type)); err != nil {
		return err
	}
	if d.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidDevice)
	}
	return nil
}

// NormaliseRoom lowercases and trims a room name so lookups are
// insensitive to how the rule text spelled the location.
func NormaliseRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}
