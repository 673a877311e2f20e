package devicectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
)

// maxResponseBytes bounds how much of a device response body is read.
const maxResponseBytes = 64 << 10

// State is the wire representation of a device's commanded state.
//
// Power is always present. Temperature and Mode are optional; omitted
// fields are left untouched by the device. Extra carries opaque tokens
// the rule text supplied beyond the recognised fields; devices that
// understand them may act on them, others ignore them.
type State struct {
	Power       string   `json:"power"`
	Temperature *float64 `json:"temperature,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Extra       []string `json:"extra,omitempty"`
}

// Equal reports whether two states command the same thing.
// Extra tokens participate: a command differing only in opaque tokens
// is still a different command.
func (s State) Equal(other State) bool {
	if s.Power != other.Power || s.Mode != other.Mode {
		return false
	}
	if (s.Temperature == nil) != (other.Temperature == nil) {
		return false
	}
	if s.Temperature != nil && *s.Temperature != *other.Temperature {
		return false
	}
	if len(s.Extra) != len(other.Extra) {
		return false
	}
	for i := range s.Extra {
		if s.Extra[i] != other.Extra[i] {
			return false
		}
	}
	return true
}

// Client talks to device control endpoints over HTTP.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// New creates a device control client from config.
func New(cfg config.ControlConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
		},
		apiKey: cfg.APIKey,
	}
}

// SetState applies a new state to the device at host.
func (c *Client) SetState(ctx context.Context, deviceID, host string, state State) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", deviceID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, host+"/state", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", deviceID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, deviceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", ErrRejected, deviceID, resp.StatusCode)
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes)) //nolint:errcheck

	return nil
}

// GetState reads the current state of the device at host.
func (c *Client) GetState(ctx context.Context, deviceID, host string) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/state", nil)
	if err != nil {
		return State{}, fmt.Errorf("building request for %s: %w", deviceID, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return State{}, fmt.Errorf("%w: %s: %w", ErrUnreachable, deviceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return State{}, fmt.Errorf("%w: %s returned %d", ErrRejected, deviceID, resp.StatusCode)
	}

	var state State
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := decoder.Decode(&state); err != nil {
		return State{}, fmt.Errorf("%w: %s: %w", ErrBadResponse, deviceID, err)
	}

	return state, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
