package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Measurement names used by Hearth.
const (
	measurementSensor  = "sensor_reading"
	measurementCommand = "device_command"
)

// SensorPoint captures one room's environmental readings at an instant.
type SensorPoint struct {
	Location    string
	Temperature float64
	Humidity    float64
	Motion      bool
	Time        time.Time
}

// CommandPoint captures one issued device command.
type CommandPoint struct {
	DeviceID    string
	Room        string
	DeviceType  string
	Power       string
	Temperature float64
	HasTemp     bool
	Mode        string
	RuleID      string
	RolledBack  bool
	Time        time.Time
}

// WriteSensorReading queues a sensor reading for batched write.
//
// Non-blocking: the point is buffered and flushed on the configured
// interval or batch size.
func (c *Client) WriteSensorReading(p SensorPoint) {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	point := influxdb2.NewPointWithMeasurement(measurementSensor).
		AddTag("location", p.Location).
		AddField("temperature", p.Temperature).
		AddField("humidity", p.Humidity).
		AddField("motion", p.Motion).
		SetTime(ts)

	c.writeAPI.WritePoint(point)
}

// WriteCommand queues an issued device command for batched write.
func (c *Client) WriteCommand(p CommandPoint) {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	point := influxdb2.NewPointWithMeasurement(measurementCommand).
		AddTag("device_id", p.DeviceID).
		AddTag("room", p.Room).
		AddTag("type", p.DeviceType).
		AddTag("rule_id", p.RuleID).
		AddField("power", p.Power).
		AddField("rolled_back", p.RolledBack).
		SetTime(ts)

	if p.HasTemp {
		point.AddField("temperature", p.Temperature)
	}
	if p.Mode != "" {
		point.AddField("mode", p.Mode)
	}

	c.writeAPI.WritePoint(point)
}
