// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session is the connect/toggle/retry state machine shared by the
// interactive front ends. It is pure: I/O is handed back to the caller as
// an Action to run.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is one of Disconnected, ConnectionFailed or Connected.
type State interface {
	isState()
	fmt.Stringer
}

// Disconnected holds the address being edited.
type Disconnected struct {
	Address string
	Port    string
	Dialing bool
}

// ConnectionFailed shows why the last connect or command failed.
type ConnectionFailed struct {
	Address string
	Port    string
	Reason  error
}

// Connected holds an open device connection.
type Connected struct {
	Address     string
	Port        string
	Conn        *ledconn.Conn
	LED         ledwire.DeviceState
	ProtocolErr error // last UnexpectedAck; LED is stale while set
	Pending     int   // toggles issued and not yet answered
}

func (Disconnected) isState()     {}
func (ConnectionFailed) isState() {}
func (Connected) isState()        {}

func (s Disconnected) String() string {
	if s.Dialing {
		return "connecting"
	}
	return "disconnected"
}

func (s ConnectionFailed) String() string { return "connection failed" }

func (s Connected) String() string { return "connected" }

// Initial returns the starting state.
func Initial(address, port string) State {
	return Disconnected{Address: address, Port: port}
}

// Event drives a transition.
type Event interface {
	isEvent()
}

type (
	AddressChanged struct{ Address string }
	PortChanged    struct{ Port string }

	ConnectRequested struct{}
	ConnectFinished  struct {
		Conn *ledconn.Conn
		Err  error
	}

	RetryRequested struct{}

	ToggleRequested struct{}
	ToggleFinished  struct {
		Conn  *ledconn.Conn // connection the command was sent on
		State ledwire.DeviceState
		Err   error
	}

	DisconnectRequested struct{}
)

func (AddressChanged) isEvent()      {}
func (PortChanged) isEvent()         {}
func (ConnectRequested) isEvent()    {}
func (ConnectFinished) isEvent()     {}
func (RetryRequested) isEvent()      {}
func (ToggleRequested) isEvent()     {}
func (ToggleFinished) isEvent()      {}
func (DisconnectRequested) isEvent() {}

// Action is blocking work produced by a transition. A non-nil result is
// fed back into Next.
type Action func(ctx context.Context) Event

// DialFunc opens a device connection.
type DialFunc func(ctx context.Context, host string, port uint16) (*ledconn.Conn, error)

// Machine computes transitions.
type Machine struct {
	Dial DialFunc
}

// Next applies ev to s. On ErrInvalidTransition the returned state is s.
func (m *Machine) Next(s State, ev Event) (State, Action, error) {
	switch st := s.(type) {
	case Disconnected:
		return m.fromDisconnected(st, ev)
	case ConnectionFailed:
		return m.fromFailed(st, ev)
	case Connected:
		return m.fromConnected(st, ev)
	default:
		return s, nil, fmt.Errorf("%w: unknown state %T", ErrInvalidTransition, s)
	}
}

func (m *Machine) fromDisconnected(s Disconnected, ev Event) (State, Action, error) {
	switch e := ev.(type) {
	case AddressChanged:
		s.Address = e.Address
		return s, nil, nil

	case PortChanged:
		s.Port = e.Port
		return s, nil, nil

	case ConnectRequested:
		if s.Dialing {
			return s, nil, nil
		}
		port, err := ledconn.ParsePort(s.Port)
		if err == nil {
			_, err = ledconn.JoinAddress(s.Address, port)
		}
		if err != nil {
			return ConnectionFailed{Address: s.Address, Port: s.Port, Reason: err}, nil, nil
		}
		s.Dialing = true
		host := s.Address
		return s, func(ctx context.Context) Event {
			conn, err := m.Dial(ctx, host, port)
			return ConnectFinished{Conn: conn, Err: err}
		}, nil

	case ConnectFinished:
		if e.Err != nil {
			return ConnectionFailed{Address: s.Address, Port: s.Port, Reason: e.Err}, nil, nil
		}
		return Connected{Address: s.Address, Port: s.Port, Conn: e.Conn, LED: ledwire.Off}, nil, nil

	case ToggleFinished:
		// answer from a connection closed by DisconnectRequested
		return s, nil, nil
	}

	return s, nil, invalid(s, ev)
}

func (m *Machine) fromFailed(s ConnectionFailed, ev Event) (State, Action, error) {
	switch ev.(type) {
	case RetryRequested:
		return Disconnected{Address: s.Address, Port: s.Port}, nil, nil
	case ToggleFinished:
		// answer from a connection that already failed
		return s, nil, nil
	}
	return s, nil, invalid(s, ev)
}

func (m *Machine) fromConnected(s Connected, ev Event) (State, Action, error) {
	switch e := ev.(type) {
	case ToggleRequested:
		s.Pending++
		conn := s.Conn
		return s, func(ctx context.Context) Event {
			state, err := conn.SendCommand(ctx)
			return ToggleFinished{Conn: conn, State: state, Err: err}
		}, nil

	case ToggleFinished:
		if e.Conn != s.Conn {
			// answer from an earlier connection of this session
			return s, nil, nil
		}
		if s.Pending > 0 {
			s.Pending--
		}
		switch ledconn.KindOf(e.Err) {
		case ledconn.KindNone:
			s.LED = e.State
			s.ProtocolErr = nil
			return s, nil, nil
		case ledconn.KindUnexpectedAck:
			s.ProtocolErr = e.Err
			return s, nil, nil
		case ledconn.KindCanceled:
			return s, nil, nil
		default:
			return ConnectionFailed{Address: s.Address, Port: s.Port, Reason: e.Err}, closeConn(s.Conn), nil
		}

	case DisconnectRequested:
		return Disconnected{Address: s.Address, Port: s.Port}, closeConn(s.Conn), nil
	}

	return s, nil, invalid(s, ev)
}

// closeConn returns an Action that closes c. Close waits for queued
// commands, so it must not run on the caller's goroutine.
func closeConn(c *ledconn.Conn) Action {
	if c == nil {
		return nil
	}
	return func(context.Context) Event {
		_ = c.Close()
		return nil
	}
}

func invalid(s State, ev Event) error {
	return fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, ev, s)
}

// Drive applies ev and runs any resulting actions synchronously until the
// machine settles.
func (m *Machine) Drive(ctx context.Context, s State, ev Event) (State, error) {
	for ev != nil {
		next, action, err := m.Next(s, ev)
		if err != nil {
			return s, err
		}
		s, ev = next, nil
		if action != nil {
			ev = action(ctx)
		}
	}
	return s, nil
}
