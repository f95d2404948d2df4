// Package export delivers each cycle's outcome to external
// collaborators: the actuator command set to the field I/O layer and
// alarm events to the reporting layer.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/avolkov/plant-controller/internal/logger"
	"github.com/avolkov/plant-controller/internal/scheduler"
)

const (
	connectTimeout = 10 * time.Second
	publishQoS     = 1
)

// MQTTPublisher pushes the command set and alarm events to the broker.
// Publishes are fire-and-forget: the scan loop never waits on the
// network.
type MQTTPublisher struct {
	client        paho.Client
	commandsTopic string
	eventsTopic   string
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(broker, clientID, commandsTopic, eventsTopic string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID + "-export").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	return &MQTTPublisher{
		client:        client,
		commandsTopic: commandsTopic,
		eventsTopic:   eventsTopic,
	}, nil
}

// PublishCycle implements scheduler.Publisher.
func (p *MQTTPublisher) PublishCycle(ctx context.Context, snap scheduler.CycleSnapshot) {
	p.publishJSON(ctx, p.commandsTopic, snap.Commands)

	for _, evt := range snap.Events {
		p.publishJSON(ctx, p.eventsTopic, evt)
	}
}

func (p *MQTTPublisher) publishJSON(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.WarnKV(ctx, "Dropping unmarshalable payload", "topic", topic, "error", err)

		return
	}

	p.client.Publish(topic, publishQoS, false, data)
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(1000)
}
