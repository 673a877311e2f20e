package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/devicectl"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// DeviceLookup fetches a device by ID. Implemented by device.Directory.
type DeviceLookup interface {
	Get(ctx context.Context, id string) (*device.Device, error)
}

// StateReader reads a device's actual state. Implemented by
// devicectl.Client.
type StateReader interface {
	GetState(ctx context.Context, deviceID, host string) (devicectl.State, error)
}

// Logger is the logging interface the package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Reconciler periodically compares cached commanded states against
// actual device states.
type Reconciler struct {
	commands *rule.CommandRegistry
	devices  DeviceLookup
	control  StateReader
	logger   Logger

	cron     *cron.Cron
	schedule string
}

// New creates a reconciler. Start does nothing when the config disables it.
func New(cfg config.ReconcileConfig, commands *rule.CommandRegistry, devices DeviceLookup, control StateReader, logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Reconciler{
		commands: commands,
		devices:  devices,
		control:  control,
		logger:   logger,
		schedule: cfg.Schedule,
	}
	if cfg.Enabled {
		r.cron = cron.New()
	}
	return r
}

// Start schedules the reconciliation job.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		r.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling reconciler: %w", err)
	}

	r.cron.Start()
	r.logger.Info("drift reconciler started", "schedule", r.schedule)
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// Run performs one reconciliation pass. Returns the number of entries
// invalidated. Exposed for on-demand runs from the API.
func (r *Reconciler) Run(ctx context.Context) int {
	invalidated := 0

	for deviceID, entry := range r.commands.Entries() {
		dev, err := r.devices.Get(ctx, deviceID)
		if err != nil {
			// Device removed from inventory; the entry is stale either way.
			r.commands.Invalidate(deviceID)
			invalidated++
			r.logger.Warn("dropping cache entry for unknown device",
				"device_id", deviceID,
				"error", err,
			)
			continue
		}

		actual, err := r.control.GetState(ctx, deviceID, dev.Host)
		if err != nil {
			r.logger.Warn("could not read device state, leaving cache entry",
				"device_id", deviceID,
				"error", err,
			)
			continue
		}

		if actual.Equal(entry.State) {
			continue
		}

		r.commands.Invalidate(deviceID)
		invalidated++
		r.logger.Info("device state drifted, cache entry invalidated",
			"device_id", deviceID,
			"commanded_power", entry.State.Power,
			"actual_power", actual.Power,
		)
	}

	if invalidated > 0 {
		r.logger.Info("reconciliation pass complete", "invalidated", invalidated)
	} else {
		r.logger.Debug("reconciliation pass complete, no drift")
	}

	return invalidated
}
