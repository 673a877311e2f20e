package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for Hearth Core.
//
// Locations may contain spaces in rule texts ("living room"); topic
// segments use the slugged form ("living-room").
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// SensorSnapshot returns the topic a room's sensor snapshots are pushed to.
//
// Example: hearth/sensor/living-room
func (Topics) SensorSnapshot(location string) string {
	return fmt.Sprintf("%s/sensor/%s", TopicPrefix, topicSegment(location))
}

// AllSensorSnapshots returns a pattern matching all pushed sensor snapshots.
//
// Pattern: hearth/sensor/+
func (Topics) AllSensorSnapshots() string {
	return fmt.Sprintf("%s/sensor/+", TopicPrefix)
}

// DeviceCommand returns the topic issued device commands are mirrored to.
//
// Example: hearth/command/ac-living-01
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// AllDeviceCommands returns a pattern matching all mirrored device commands.
//
// Pattern: hearth/command/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// RuleFired returns the topic for rule trigger events.
//
// Example: hearth/event/rule/9f2c.../fired
func (Topics) RuleFired(ruleID string) string {
	return fmt.Sprintf("%s/event/rule/%s/fired", TopicPrefix, ruleID)
}

// SystemStatus returns the system status topic.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// topicSegment converts a human location name to a topic-safe segment.
func topicSegment(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// LocationFromSensorTopic extracts the location from a sensor snapshot
// topic, mapping the slugged segment back to the spaced form rule
// conditions use ("living-room" -> "living room"). Returns "" if the
// topic does not match the scheme.
func LocationFromSensorTopic(topic string) string {
	prefix := TopicPrefix + "/sensor/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(topic, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return strings.ReplaceAll(rest, "-", " ")
}
