package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// maxBodyBytes bounds how much of a sensor response body is read.
const maxBodyBytes = 64 << 10

// ErrFetchFailed indicates a sensor endpoint could not be read.
var ErrFetchFailed = errors.New("sensor: fetch failed")

// Reading is one room's environmental readings at an instant.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Motion      bool    `json:"motion"`
}

// Snapshot converts a single room's reading into the engine's
// snapshot form.
func (r Reading) Snapshot(location string) rule.Snapshot {
	return rule.Snapshot{
		Temp:     map[string]float64{location: r.Temperature},
		Humidity: map[string]float64{location: r.Humidity},
		Motion:   map[string]bool{location: r.Motion},
	}
}

// Source fetches one room's current readings.
type Source interface {
	Fetch(ctx context.Context) (Reading, error)
}

// HTTPSource reads a sensor endpoint returning a JSON Reading.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for one sensor endpoint.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch reads the endpoint's current values.
func (s *HTTPSource) Fetch(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: building request: %w", ErrFetchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: endpoint returned %d", ErrFetchFailed, resp.StatusCode)
	}

	var reading Reading
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := decoder.Decode(&reading); err != nil {
		return Reading{}, fmt.Errorf("%w: decoding response: %w", ErrFetchFailed, err)
	}

	return reading, nil
}
