// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Transport is the byte stream a Conn talks over.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// deadliner is implemented by transports that can bound a blocking call.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// ConnState is the lifecycle state of a Conn.
type ConnState int32

// Connection states
const (
	StateIdle ConnState = iota
	StateInFlight
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in-flight"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// Conn is a client connection to one LED device.
type Conn struct {
	transport Transport
	remote    string
	format    ledwire.Format
	timeout   time.Duration
	logger    zerolog.Logger
	observer  Observer

	// slot admits one command at a time, in arrival order
	slot  *semaphore.Weighted
	state atomic.Int32

	closeOnce sync.Once

	mu      sync.Mutex
	last    ledwire.DeviceState
	hasLast bool
}

// Dial connects to a device over TCP. No Conn is returned on error.
func Dial(ctx context.Context, host string, port uint16, opts ...Option) (*Conn, error) {
	o := newOptions(opts)

	addr, err := JoinAddress(host, port)
	if err != nil {
		return nil, err
	}
	nc, err := DialTCP(ctx, host, port, o.dialTimeout)
	if err != nil {
		return nil, err
	}

	o.logger.Debug().Str("remote", addr).Msg("connected")
	return newConn(nc, addr, o), nil
}

// DialTCP opens the raw TCP stream to a device, for callers that need the
// bytes without framing. A zero timeout leaves only ctx as the bound.
func DialTCP(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, error) {
	addr, err := JoinAddress(host, port)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: addr, Err: err}
	}
	return nc, nil
}

// New wraps an already open transport.
func New(t Transport, opts ...Option) *Conn {
	return newConn(t, describe(t), newOptions(opts))
}

func newConn(t Transport, remote string, o options) *Conn {
	var obs Observer
	switch len(o.observers) {
	case 0:
	case 1:
		obs = o.observers[0]
	default:
		obs = MultiObserver(o.observers)
	}

	return &Conn{
		transport: t,
		remote:    remote,
		format:    o.format,
		timeout:   o.timeout,
		logger:    o.logger.With().Str("remote", remote).Logger(),
		observer:  obs,
		slot:      semaphore.NewWeighted(1),
	}
}

func describe(t Transport) string {
	switch v := t.(type) {
	case interface{ RemoteAddr() net.Addr }:
		if addr := v.RemoteAddr(); addr != nil {
			return addr.String()
		}
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%T", t)
}

// RemoteAddr describes the device endpoint.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Format returns the response format this Conn expects.
func (c *Conn) Format() ledwire.Format {
	return c.format
}

// State reports whether a command is running or the Conn is closed.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// LastState returns the state from the most recent successful command.
func (c *Conn) LastState() (ledwire.DeviceState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// SendCommand toggles the LED and returns the state the device reports.
//
// Callers are served one at a time. ctx only bounds the wait for a turn;
// once the request is written the command runs until the device answers or
// the transport fails. A transport failure closes the Conn.
func (c *Conn) SendCommand(ctx context.Context) (ledwire.DeviceState, error) {
	if err := c.slot.Acquire(ctx, 1); err != nil {
		return ledwire.Off, err
	}
	defer c.slot.Release(1)

	if c.State() == StateClosed {
		return ledwire.Off, &TransportError{Op: "send", Addr: c.remote, Err: ErrClosed}
	}

	c.state.Store(int32(StateInFlight))
	ex := Exchange{Start: time.Now(), Remote: c.remote, Format: c.format}
	state, err := c.exchange(&ex)
	ex.Duration = time.Since(ex.Start)
	ex.State = state
	ex.Err = err

	var te *TransportError
	switch {
	case err == nil:
		c.state.Store(int32(StateIdle))
		c.mu.Lock()
		c.last, c.hasLast = state, true
		c.mu.Unlock()
		c.logger.Debug().Str("state", state.String()).Dur("rtt", ex.Duration).Msg("toggle acknowledged")
	case errors.As(err, &te):
		c.logger.Warn().Err(err).Msg("transport failed, closing connection")
		c.closeTransport()
	default:
		c.state.Store(int32(StateIdle))
		c.logger.Warn().Err(err).Str("response", ledwire.FormatBytes(ex.Response)).Msg("bad response")
	}

	if c.observer != nil {
		c.observer.ObserveExchange(ex)
	}
	return state, err
}

// exchange runs one write/read cycle. The caller holds the slot.
func (c *Conn) exchange(ex *Exchange) (ledwire.DeviceState, error) {
	if c.timeout > 0 {
		if d, ok := c.transport.(deadliner); ok {
			if err := d.SetDeadline(time.Now().Add(c.timeout)); err != nil {
				c.logger.Debug().Err(err).Dur("timeout", c.timeout).Msg("transport rejected deadline, command is unbounded")
			} else {
				defer d.SetDeadline(time.Time{}) //nolint:errcheck
			}
		}
	}

	req := ledwire.EncodeToggle()
	ex.Request = req[:]

	n, err := c.transport.Write(req[:])
	if err != nil {
		return ledwire.Off, &TransportError{Op: "write", Addr: c.remote, Err: err}
	}
	if n != len(req) {
		return ledwire.Off, &TransportError{Op: "write", Addr: c.remote, Err: io.ErrShortWrite}
	}

	resp := make([]byte, c.format.ResponseLen())
	n, err = io.ReadFull(c.transport, resp)
	ex.Response = resp[:n]
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return ledwire.Off, &TransportError{Op: "read", Addr: c.remote, Err: err}
	}

	return ledwire.Decode(c.format, resp)
}

// Close waits for a running command to finish and closes the transport.
// It is safe to call more than once.
func (c *Conn) Close() error {
	// Not cancellable: the transport must not be closed under a command.
	if err := c.slot.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.slot.Release(1)

	return c.closeTransport()
}

func (c *Conn) closeTransport() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
	})
	c.state.Store(int32(StateClosed))
	return err
}
