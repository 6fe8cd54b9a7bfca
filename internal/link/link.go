// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link keeps one device connection for long-running front ends.
// The connection is opened on first use and dropped after a transport
// failure so the next command redials. Nothing is retried automatically.
package link

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Toggle after Close.
var ErrClosed = errors.New("link closed")

// Dialer opens a device connection.
type Dialer func(ctx context.Context) (*ledconn.Conn, error)

// Status is what the link knows about the device.
type Status struct {
	State     ledwire.DeviceState `json:"state"`
	Known     bool                `json:"known"`
	Connected bool                `json:"connected"`
	Remote    string              `json:"remote,omitempty"`
}

// Link shares one Conn between concurrent callers.
type Link struct {
	dial   Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *ledconn.Conn
	dialing chan struct{} // closed when the running dial returns
	closed  bool
	state   ledwire.DeviceState
	known   bool

	subsMu sync.Mutex
	subs   []func(ledwire.DeviceState)
}

// New creates a Link that connects with dial.
func New(dial Dialer, logger zerolog.Logger) *Link {
	return &Link{dial: dial, logger: logger}
}

// Subscribe registers fn to run after every successful toggle.
func (l *Link) Subscribe(fn func(ledwire.DeviceState)) {
	l.subsMu.Lock()
	l.subs = append(l.subs, fn)
	l.subsMu.Unlock()
}

// connect returns the open Conn, dialing one if needed. The dial runs
// without holding mu; concurrent callers wait for it or for their ctx.
func (l *Link) connect(ctx context.Context) (*ledconn.Conn, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, ErrClosed
		}
		if l.conn != nil && l.conn.State() != ledconn.StateClosed {
			conn := l.conn
			l.mu.Unlock()
			return conn, nil
		}
		if wait := l.dialing; wait != nil {
			l.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		l.dialing = done
		l.mu.Unlock()

		conn, err := l.dial(ctx)

		l.mu.Lock()
		l.dialing = nil
		closed := l.closed
		if err == nil && !closed {
			l.conn = conn
		}
		l.mu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		if closed {
			_ = conn.Close()
			return nil, ErrClosed
		}
		l.logger.Info().Str("remote", conn.RemoteAddr()).Msg("device connected")
		return conn, nil
	}
}

// Toggle sends one toggle command and returns the reported state.
func (l *Link) Toggle(ctx context.Context) (ledwire.DeviceState, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return ledwire.Off, err
	}

	state, err := conn.SendCommand(ctx)
	switch ledconn.KindOf(err) {
	case ledconn.KindNone:
	case ledconn.KindTransport:
		l.drop(conn)
		return ledwire.Off, err
	default:
		return ledwire.Off, err
	}

	l.mu.Lock()
	l.state, l.known = state, true
	l.mu.Unlock()

	l.subsMu.Lock()
	subs := slices.Clone(l.subs)
	l.subsMu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
	return state, nil
}

func (l *Link) drop(conn *ledconn.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == conn {
		l.logger.Warn().Str("remote", conn.RemoteAddr()).Msg("device connection lost")
		l.conn = nil
	}
}

// Status reports the last known state.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Status{State: l.state, Known: l.known}
	if l.conn != nil && l.conn.State() != ledconn.StateClosed {
		s.Connected = true
		s.Remote = l.conn.RemoteAddr()
	}
	return s
}

// Close closes the current connection, if any. A dial still running is
// closed when it returns.
func (l *Link) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.closed = true
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
