// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
)

// commandQueueLen bounds commands waiting for the device.
const commandQueueLen = 32

// Toggler is the device side of the bridge.
type Toggler interface {
	Toggle(ctx context.Context) (ledwire.DeviceState, error)
	Subscribe(fn func(ledwire.DeviceState))
}

// publisher is the broker side of the bridge.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) error
}

// Bridge publishes LED state changes and turns messages on the command
// topic into toggles.
//
// Topics, for base topic "lumen/led":
//
//	lumen/led/state   retained "on" or "off", published after every toggle
//	lumen/led/toggle  "" or "toggle" toggles; "on" or "off" sets the state
type Bridge struct {
	topic   string
	device  Toggler
	pub     publisher
	logger  zerolog.Logger
	timeout time.Duration
	queue   chan []byte

	mu    sync.Mutex
	known bool
	last  ledwire.DeviceState
}

// NewBridge wires device to pub under base topic.
func NewBridge(topic string, device Toggler, pub publisher, logger zerolog.Logger) *Bridge {
	b := &Bridge{
		topic:   strings.TrimSuffix(topic, "/"),
		device:  device,
		pub:     pub,
		logger:  logger,
		timeout: 10 * time.Second,
		queue:   make(chan []byte, commandQueueLen),
	}
	device.Subscribe(b.publishState)
	return b
}

// StateTopic is where the LED state is published.
func (b *Bridge) StateTopic() string { return b.topic + "/state" }

// CommandTopic is where toggle commands are received.
func (b *Bridge) CommandTopic() string { return b.topic + "/toggle" }

func (b *Bridge) publishState(s ledwire.DeviceState) {
	b.mu.Lock()
	b.known, b.last = true, s
	b.mu.Unlock()

	if err := b.pub.Publish(b.StateTopic(), 1, true, s.String()); err != nil {
		b.logger.Warn().Err(err).Str("topic", b.StateTopic()).Msg("failed to publish state")
	}
}

// HandleCommand queues one message from the command topic for Run. It
// never waits for the device, so it is safe as a broker message handler.
func (b *Bridge) HandleCommand(topic string, payload []byte) {
	select {
	case b.queue <- append([]byte(nil), payload...):
	default:
		b.logger.Warn().Str("topic", topic).Msg("command queue full, dropping command")
	}
}

// Run executes queued commands in arrival order until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-b.queue:
			b.execute(ctx, payload)
		}
	}
}

// execute runs one command against the device.
func (b *Bridge) execute(ctx context.Context, payload []byte) {
	cmd := strings.ToLower(strings.TrimSpace(string(payload)))
	log := b.logger.With().Str("topic", b.CommandTopic()).Str("payload", cmd).Logger()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	switch cmd {
	case "", "toggle":
		if _, err := b.device.Toggle(ctx); err != nil {
			log.Warn().Err(err).Msg("toggle failed")
		}
		return
	}

	want, err := ledwire.ParseDeviceState(cmd)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring command")
		return
	}

	// At most two toggles: one may be needed to learn the state.
	for i := 0; i < 2; i++ {
		if b.is(want) {
			return
		}
		if _, err := b.device.Toggle(ctx); err != nil {
			log.Warn().Err(err).Msg("toggle failed")
			return
		}
	}
}

func (b *Bridge) is(s ledwire.DeviceState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.known && b.last == s
}
