package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/avolkov/plant-controller/internal/logger"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

// MQTTSource subscribes to the field-acquisition collaborator's raw
// measurement topic. The latest decoded snapshot wins; Next never
// blocks the scan loop.
type MQTTSource struct {
	client paho.Client
	topic  string

	mu     sync.Mutex
	latest RawSnapshot
	fresh  bool
}

// NewMQTTSource connects to the broker and subscribes to the topic.
func NewMQTTSource(ctx context.Context, broker, clientID, topic string) (*MQTTSource, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID + "-ingest").
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

	src := &MQTTSource{
		client: client,
		topic:  topic,
	}

	token = client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		var snap RawSnapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			logger.WarnKV(ctx, "Discarding malformed measurement snapshot",
				"topic", msg.Topic(), "error", err)

			return
		}

		src.mu.Lock()
		src.latest = snap
		src.fresh = true
		src.mu.Unlock()
	})
	if !token.WaitTimeout(subscribeTimeout) {
		client.Disconnect(250)

		return nil, fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(250)

		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return src, nil
}

// Next returns the latest snapshot. ok is false until the first message
// arrives; afterwards the last snapshot is re-delivered on quiet cycles
// (last-known values keep the loop deterministic).
func (s *MQTTSource) Next(_ context.Context) (RawSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest, s.fresh
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(1000)
}
