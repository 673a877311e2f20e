package sensor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fernhill-labs/hearth-core/internal/infrastructure/mqtt"
)

// Ingestor receives pushed sensor readings over MQTT.
//
// Rooms publish a JSON Reading to hearth/sensor/<room-slug>; each
// message is converted to a snapshot and dispatched. The slug maps
// back to the spaced location form ("living-room" -> "living room"),
// so rule conditions match pushed readings the same way they match
// polled ones.
type Ingestor struct {
	client     *mqtt.Client
	dispatcher Dispatcher
	logger     Logger

	// OnReading mirrors successful ingests, same as Poller.OnReading.
	OnReading func(location string, r Reading)
}

// NewIngestor creates an MQTT ingestor.
func NewIngestor(client *mqtt.Client, dispatcher Dispatcher, logger Logger) *Ingestor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingestor{client: client, dispatcher: dispatcher, logger: logger}
}

// Start subscribes to all sensor topics.
func (i *Ingestor) Start(qos byte) error {
	topic := mqtt.Topics{}.AllSensorSnapshots()
	if err := i.client.Subscribe(topic, qos, i.handle); err != nil {
		return fmt.Errorf("subscribing to sensor topics: %w", err)
	}
	return nil
}

// handle processes one pushed reading.
func (i *Ingestor) handle(topic string, payload []byte) error {
	location := mqtt.LocationFromSensorTopic(topic)
	if location == "" {
		return fmt.Errorf("sensor: unexpected topic %q", topic)
	}

	var reading Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("sensor: decoding reading from %q: %w", topic, err)
	}

	if i.OnReading != nil {
		i.OnReading(location, reading)
	}

	i.dispatcher.ProcessSnapshot(context.Background(), reading.Snapshot(location))
	return nil
}
