package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// Dispatcher receives snapshots. Implemented by rule.Manager.
type Dispatcher interface {
	ProcessSnapshot(ctx context.Context, snap rule.Snapshot)
}

// Logger is the logging interface the package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// room pairs a location with its source and interval.
type room struct {
	location string
	source   Source
	interval time.Duration
}

// Poller runs one fixed-interval fetch loop per room.
//
// A failed fetch is logged and skipped; the next tick tries again. No
// backpressure exists between rooms or ticks - the engine's snapshot
// serialization is the only throttle.
type Poller struct {
	rooms      []room
	dispatcher Dispatcher
	logger     Logger

	// OnReading, when set, observes every successful fetch. Used to
	// mirror readings to telemetry.
	OnReading func(location string, r Reading)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller builds a poller from room configs.
func NewPoller(cfg config.SensorsConfig, dispatcher Dispatcher, logger Logger) *Poller {
	if logger == nil {
		logger = noopLogger{}
	}

	p := &Poller{dispatcher: dispatcher, logger: logger}
	for _, rc := range cfg.Rooms {
		interval := time.Duration(rc.Interval) * time.Second
		p.rooms = append(p.rooms, room{
			location: rc.Location,
			source:   NewHTTPSource(rc.URL, interval),
			interval: interval,
		})
	}
	return p
}

// AddRoom registers an extra room with a custom source. Must be called
// before Start.
func (p *Poller) AddRoom(location string, source Source, interval time.Duration) {
	p.rooms = append(p.rooms, room{location: location, source: source, interval: interval})
}

// Start launches one polling goroutine per room. It returns
// immediately; polling stops when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for _, r := range p.rooms {
		p.wg.Add(1)
		go p.poll(ctx, r)
	}
}

// Stop halts polling and waits for in-flight ticks to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context, r room) {
	defer p.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, r)
		}
	}
}

// tick performs one independent fetch-and-dispatch.
func (p *Poller) tick(ctx context.Context, r room) {
	reading, err := r.source.Fetch(ctx)
	if err != nil {
		p.logger.Warn("sensor fetch failed",
			"location", r.location,
			"error", err,
		)
		return
	}

	p.logger.Debug("sensor reading",
		"location", r.location,
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"motion", reading.Motion,
	)

	if p.OnReading != nil {
		p.OnReading(r.location, reading)
	}

	p.dispatcher.ProcessSnapshot(ctx, reading.Snapshot(r.location))
}
