// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqtt bridges the LED to an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPublishTimeout bounds how long Publish waits for the broker.
const DefaultPublishTimeout = 5 * time.Second

var (
	// ErrNotConnected is returned when publishing while the broker is down.
	ErrNotConnected = errors.New("MQTT client is not connected")

	ErrPublishTimeout = errors.New("timed out waiting for MQTT broker")
)

// Client wraps a paho client.
type Client struct {
	client         paho.Client
	logger         zerolog.Logger
	publishTimeout time.Duration
}

// Config holds MQTT client configuration
type Config struct {
	ServerURL     string
	ClientID      string // generated when empty
	Username      string
	Password      string
	MaxRetryDelay time.Duration
	// PublishTimeout defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration
	OnConnect      func(*Client)
	Logger         zerolog.Logger
}

// NewClientID returns a unique client ID.
func NewClientID() string {
	return "lumen-" + uuid.NewString()
}

// NewClient creates a client and starts connecting in the background. paho
// keeps retrying until Disconnect.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT server URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "tcp", "ssl", "tls", "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid MQTT server URL: unsupported scheme %q", u.Scheme)
	}
	if u.Scheme == "mqtt" {
		u.Scheme = "tcp"
	}

	if cfg.ClientID == "" {
		cfg.ClientID = NewClientID()
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	c := &Client{
		logger:         cfg.Logger.With().Str("broker", u.Host).Logger(),
		publishTimeout: cfg.PublishTimeout,
	}
	c.client = paho.NewClient(c.options(u.String(), cfg))
	c.client.Connect()
	return c, nil
}

func (c *Client) options(broker string, cfg Config) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	// Handlers may publish and wait for the PUBACK, which ordered
	// delivery would hold behind the running handler.
	opts.SetOrderMatters(false)
	opts.SetWriteTimeout(cfg.PublishTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Second)
	opts.SetMaxReconnectInterval(cfg.MaxRetryDelay)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.logger.Info().Str("client_id", cfg.ClientID).Msg("connected to MQTT broker")
		if cfg.OnConnect != nil {
			cfg.OnConnect(c)
		}
	})
	return opts
}

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, qos byte, retained bool, payload any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.publishTimeout) {
		return fmt.Errorf("failed to publish MQTT message to %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish MQTT message: %w", err)
	}
	return nil
}

// Subscribe subscribes to a topic with the given message handler
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	wrapped := func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	if token := c.client.Subscribe(topic, qos, wrapped); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to MQTT topic %s: %w", topic, token.Error())
	}
	return nil
}

// IsConnected returns true if the client is connected to the MQTT broker
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect(quiesce uint) {
	if c.client != nil {
		c.client.Disconnect(quiesce)
		c.logger.Info().Msg("disconnected from MQTT broker")
	}
}
