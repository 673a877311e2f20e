// Package mqtt provides the MQTT client for Hearth Core.
//
// The client wraps paho.mqtt.golang with connection management, automatic
// re-subscription after reconnect, Last Will and Testament for offline
// detection, and panic-safe message handlers.
//
// Hearth uses MQTT for two things:
//   - ingesting pushed sensor snapshots on hearth/sensor/<location>
//   - mirroring issued device commands and rule events for observers
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package mqtt
