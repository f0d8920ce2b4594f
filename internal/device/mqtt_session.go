package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTChannel maps one sensor channel to the broker topic it publishes on.
type MQTTChannel struct {
	Key   int
	Name  string
	Topic string
}

// MQTTSessionConfig holds broker connection settings for one sensor session.
type MQTTSessionConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Channels []MQTTChannel
}

// MQTTSession implements Session for sensors that publish channel readings to
// an MQTT broker. Channel discovery is static (from configuration) since the
// broker has no entity-listing call.
type MQTTSession struct {
	cfg    MQTTSessionConfig
	client mqtt.Client

	mu        sync.Mutex
	connected bool
}

// NewMQTTSession creates a session for the given broker and channel set.
func NewMQTTSession(cfg MQTTSessionConfig) *MQTTSession {
	return &MQTTSession{cfg: cfg}
}

// Connect dials the broker. A failed connect leaves the session safe to
// disconnect and reconnect.
func (s *MQTTSession) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return fmt.Errorf("connect to broker %s timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %s failed: %w", s.cfg.Broker, err)
	}
	if err := ctx.Err(); err != nil {
		client.Disconnect(250)
		return err
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.mu.Unlock()
	return nil
}

// ListChannels returns the configured channel set.
func (s *MQTTSession) ListChannels() ([]Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, errors.New("not connected to broker")
	}
	channels := make([]Channel, 0, len(s.cfg.Channels))
	for _, ch := range s.cfg.Channels {
		channels = append(channels, Channel{Key: ch.Key, Name: ch.Name})
	}
	return channels, nil
}

// Subscribe registers fn for every channel topic. Payloads are plain decimal
// readings; anything unparseable is dropped with a log line.
func (s *MQTTSession) Subscribe(fn func(ChannelUpdate)) error {
	s.mu.Lock()
	client := s.client
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return errors.New("not connected to broker")
	}

	for _, ch := range s.cfg.Channels {
		key := ch.Key
		token := client.Subscribe(ch.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			value, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
			if err != nil {
				log.Printf("mqtt: unparseable payload on %s: %q", msg.Topic(), msg.Payload())
				return
			}
			fn(ChannelUpdate{Key: key, Value: value})
		})
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("subscribe to %s timed out", ch.Topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s failed: %w", ch.Topic, err)
		}
	}
	return nil
}

// Disconnect tears down the broker connection. Safe to call when never
// connected or after a failed Connect.
func (s *MQTTSession) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.connected = false
	s.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	return nil
}
