// Package publish pushes station snapshots to an MQTT broker so dashboards
// can follow the station state without polling the HTTP API.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

// MQTTConfig configures an MQTTPublisher.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string

	// PublishTimeout bounds one publish (default: 5 seconds).
	PublishTimeout time.Duration

	Logger zerolog.Logger
}

// publisher is the part of mqtt.Client this package uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher implements weather.Notifier.
type MQTTPublisher struct {
	client  publisher
	topic   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMQTTPublisher builds a client for cfg.Broker. Connect must be called
// before the first Notify.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, mqtt.Client) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	logger := cfg.Logger
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	return newPublisher(client, cfg), client
}

func newPublisher(client publisher, cfg MQTTConfig) *MQTTPublisher {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{
		client:  client,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Connect waits for the broker connection or for ctx to end.
func Connect(ctx context.Context, client mqtt.Client) error {
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
}

// Notify publishes snap as a retained JSON message.
func (p *MQTTPublisher) Notify(ctx context.Context, snap weather.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish to %s: timed out after %s", p.topic, p.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("state", string(snap.State)).
		Msg("published station state")
	return nil
}
