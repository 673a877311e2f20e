// Hearth Core - home automation rule engine
//
// This is the main entry point for the Hearth Core service. Hearth turns
// one-line automation rules ("if temp > 25 in living room then ac on
// cool 23") into live reactions to streaming sensor readings, issuing
// de-duplicated, rollback-capable device commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fernhill-labs/hearth-core/migrations"

	"github.com/fernhill-labs/hearth-core/internal/api"
	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/devicectl"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/database"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/influxdb"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/logging"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/mqtt"
	"github.com/fernhill-labs/hearth-core/internal/reconcile"
	"github.com/fernhill-labs/hearth-core/internal/rule"
	"github.com/fernhill-labs/hearth-core/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main so it can
// return errors and main can handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and apply migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	// Device inventory and control
	directory := device.NewDirectory(device.NewSQLiteRepository(db.DB))
	control := devicectl.New(cfg.Control)

	// Telemetry mirror (optional)
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer influx.Close() //nolint:errcheck
		influx.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		log.Info("influxdb connected", "url", cfg.InfluxDB.URL)
	}

	// MQTT (optional): pushed sensor readings in, engine events out
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer mqttClient.Close() //nolint:errcheck
		mqttClient.SetLogger(log)
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Rule engine
	commands := rule.NewCommandRegistry()
	ruleRepo := rule.NewSQLiteRepository(db.DB)

	var hub *api.Hub // set once the API server exists; hooks check for nil
	hooks := rule.Hooks{
		EventFired: func(cond rule.Condition, active bool, value float64) {
			if hub != nil {
				hub.Broadcast("rule.event", map[string]any{
					"metric":   string(cond.Metric),
					"location": cond.Location,
					"active":   active,
					"value":    value,
				})
			}
		},
		CommandIssued: func(cmd rule.IssuedCommand) {
			if hub != nil {
				hub.Broadcast("command.issued", cmd)
			}
			if influx != nil {
				point := influxdb.CommandPoint{
					DeviceID:   cmd.DeviceID,
					Room:       cmd.Room,
					DeviceType: string(cmd.DeviceType),
					Power:      cmd.State.Power,
					Mode:       cmd.State.Mode,
					RuleID:     cmd.RuleID,
					Time:       cmd.Time,
				}
				if cmd.State.Temperature != nil {
					point.Temperature = *cmd.State.Temperature
					point.HasTemp = true
				}
				influx.WriteCommand(point)
			}
			if mqttClient != nil {
				payload := fmt.Sprintf(`{"rule_id":%q,"power":%q,"time":%q}`,
					cmd.RuleID, cmd.State.Power, cmd.Time.Format(time.RFC3339))
				topic := mqtt.Topics{}.DeviceCommand(cmd.DeviceID)
				if err := mqttClient.Publish(topic, []byte(payload), byte(cfg.MQTT.QoS), false); err != nil {
					log.Warn("publishing command event failed", "error", err)
				}
			}
		},
	}

	manager, err := rule.NewManager(rule.ManagerConfig{
		Directory:  directory,
		Control:    control,
		Commands:   commands,
		Repository: ruleRepo,
		Logger:     log.With("component", "rules"),
		Hooks:      hooks,
	})
	if err != nil {
		return fmt.Errorf("creating rule manager: %w", err)
	}

	registered, err := manager.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	log.Info("rules loaded", "registered", registered)

	// Drift reconciliation
	reconciler := reconcile.New(cfg.Reconcile, commands, directory, control, log.With("component", "reconcile"))

	// HTTP API. Created before sensor ingestion starts so the event hub
	// exists by the time the first snapshot can fire a hook.
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Security:   cfg.Security,
		Logger:     log,
		Manager:    manager,
		Rules:      ruleRepo,
		Devices:    directory,
		Reconciler: reconciler,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	hub = server.Hub()

	// Sensor ingestion
	mirrorReading := func(location string, r sensor.Reading) {
		if influx == nil {
			return
		}
		influx.WriteSensorReading(influxdb.SensorPoint{
			Location:    location,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Motion:      r.Motion,
		})
	}

	if cfg.Sensors.Enabled {
		poller := sensor.NewPoller(cfg.Sensors, manager, log.With("component", "sensors"))
		poller.OnReading = mirrorReading
		poller.Start(ctx)
		defer poller.Stop()
		log.Info("sensor polling started", "rooms", len(cfg.Sensors.Rooms))
	}

	if mqttClient != nil {
		ingestor := sensor.NewIngestor(mqttClient, manager, log.With("component", "ingest"))
		ingestor.OnReading = mirrorReading
		if err := ingestor.Start(byte(cfg.MQTT.QoS)); err != nil {
			return fmt.Errorf("starting MQTT ingest: %w", err)
		}
		log.Info("MQTT sensor ingest started")
	}

	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("starting reconciler: %w", err)
	}
	defer reconciler.Stop()

	serverErr := server.Start(ctx)
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	log.Info("Hearth Core running")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		return err
	}
}

// getConfigPath returns the config file path from args or the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if env := os.Getenv("HEARTH_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}
