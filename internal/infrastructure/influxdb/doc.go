// Package influxdb provides time-series persistence for sensor readings
// and issued device commands.
//
// The client wraps influxdb-client-go with non-blocking batched writes:
// points are queued in memory and flushed on a timer or when the batch
// fills. Write errors surface through an error callback rather than the
// write path, so telemetry never blocks rule evaluation.
//
// The package is optional; when disabled in config, callers receive
// ErrDisabled from Connect and should skip mirroring.
package influxdb
