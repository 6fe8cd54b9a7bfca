// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emulator is a TCP stand-in for the LED device firmware.
package emulator

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
)

// DefaultKeepAlive matches the firmware's TCP keepalive idle time.
const DefaultKeepAlive = 5 * time.Second

// Fault makes the emulator misbehave on purpose.
type Fault int

// Faults
const (
	FaultNone Fault = iota
	// FaultBadAck answers with a NAK byte in place of the ack.
	FaultBadAck
	// FaultDropAfterCommand closes the client without answering.
	FaultDropAfterCommand
)

// Config configures a Device.
type Config struct {
	Format  ledwire.Format
	Initial ledwire.DeviceState
	Fault   Fault
	Logger  zerolog.Logger
}

// Device emulates one LED. Its state is shared by all clients.
type Device struct {
	format ledwire.Format
	logger zerolog.Logger

	mu    sync.Mutex
	led   ledwire.DeviceState
	fault Fault

	toggles atomic.Uint64
	clients atomic.Int32
	wg      sync.WaitGroup
}

// New creates a Device.
func New(cfg Config) *Device {
	return &Device{
		format: cfg.Format,
		logger: cfg.Logger,
		led:    cfg.Initial,
		fault:  cfg.Fault,
	}
}

// State returns the current LED level.
func (d *Device) State() ledwire.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.led
}

// SetFault changes the injected fault for subsequent commands.
func (d *Device) SetFault(f Fault) {
	d.mu.Lock()
	d.fault = f
	d.mu.Unlock()
}

// Toggles counts toggle commands received.
func (d *Device) Toggles() uint64 {
	return d.toggles.Load()
}

// ListenAndServe listens on addr and serves until ctx is done.
func (d *Device) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return d.Serve(ctx, ln)
}

// Serve accepts clients on ln until ctx is done, then closes ln and waits
// for client handlers to return.
func (d *Device) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	d.logger.Info().Str("addr", ln.Addr().String()).Str("format", d.format.String()).Msg("emulator listening")

	var conns sync.Map
	closeAll := func() {
		conns.Range(func(k, _ any) bool {
			_ = k.(net.Conn).Close()
			return true
		})
	}

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		closeAll()
	})
	defer stop()

	defer func() {
		closeAll()
		d.wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(DefaultKeepAlive)
		}

		conns.Store(conn, struct{}{})
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer conns.Delete(conn)
			d.handleClient(conn)
		}()
	}
}

// handleClient reads one byte at a time. Anything but a toggle is ignored.
func (d *Device) handleClient(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := d.clients.Add(1)
	log := d.logger.With().Str("remote", remote).Logger()
	log.Info().Int32("active_clients", active).Msg("client connected")
	defer func() {
		remaining := d.clients.Add(-1)
		log.Info().Int32("active_clients", remaining).Msg("client disconnected")
	}()

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		log.Debug().Str("command", ledwire.FormatBytes(buf)).Msg("received command")
		if buf[0] != ledwire.ToggleCommand {
			continue
		}

		resp, fault := d.toggle()
		if fault == FaultDropAfterCommand {
			log.Warn().Msg("dropping client without reply")
			return
		}

		if _, err := conn.Write(resp); err != nil {
			log.Warn().Err(err).Msg("write failed")
			return
		}
		log.Debug().Str("response", ledwire.FormatBytes(resp)).Msg("sent response")
	}
}

func (d *Device) toggle() ([]byte, Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.toggles.Add(1)
	d.led = d.led.Toggled()
	resp := ledwire.EncodeResponse(d.format, d.led)
	if d.fault == FaultBadAck {
		resp[0] = nak
	}
	return resp, d.fault
}

const nak = 0x15
