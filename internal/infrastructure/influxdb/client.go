package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
)

// healthCheckTimeout bounds the connection probe at startup.
const healthCheckTimeout = 5 * time.Second

// Client wraps the InfluxDB v2 client with Hearth-specific write helpers.
//
// Writes go through the non-blocking WriteAPI: they are batched in memory
// and flushed asynchronously. Errors are delivered via SetOnError.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	onError func(err error)
	errMu   sync.RWMutex

	closed bool
	mu     sync.Mutex
}

// Connect creates an InfluxDB client and verifies the server is reachable.
//
// Returns ErrDisabled when influxdb.enabled is false; callers treat that
// as "no telemetry" rather than a failure.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000)) // seconds -> ms

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("%w: server status %q", ErrConnectionFailed, health.Status)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}

	// Drain the async error channel; without a reader it fills up and
	// the write API stalls.
	go c.watchErrors()

	return c, nil
}

// watchErrors forwards asynchronous write errors to the registered callback.
func (c *Client) watchErrors() {
	for err := range c.writeAPI.Errors() {
		c.errMu.RLock()
		callback := c.onError
		c.errMu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write errors.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}

// Flush forces any buffered points to be written immediately.
func (c *Client) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.writeAPI.Flush()
}

// HealthCheck verifies the InfluxDB server is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influxdb health check: server status %q", health.Status)
	}

	return nil
}

// Close flushes remaining points and releases the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}
