// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers each toggle request on conn with the next scripted
// response. A nil response closes the connection after the request is read.
type fakeDevice struct {
	conn      net.Conn
	responses [][]byte
	gate      chan struct{}
	requests  atomic.Int32
	// requests that were not a single toggle byte
	badRequests atomic.Int32
	done        chan struct{}
}

func newFakeDevice(t *testing.T, conn net.Conn, responses ...[]byte) *fakeDevice {
	t.Helper()
	d := &fakeDevice{conn: conn, responses: responses, done: make(chan struct{})}
	t.Cleanup(func() { conn.Close() })
	return d
}

func (d *fakeDevice) run() {
	defer close(d.done)
	buf := make([]byte, 1)
	for _, resp := range d.responses {
		if _, err := io.ReadFull(d.conn, buf); err != nil {
			return
		}
		d.requests.Add(1)
		if buf[0] != ledwire.ToggleCommand {
			d.badRequests.Add(1)
		}
		if d.gate != nil {
			<-d.gate
		}
		if resp == nil {
			d.conn.Close()
			return
		}
		if _, err := d.conn.Write(resp); err != nil {
			return
		}
	}
}

func pipeConn(t *testing.T, opts []Option, responses ...[]byte) (*Conn, *fakeDevice) {
	t.Helper()
	client, server := net.Pipe()
	dev := newFakeDevice(t, server, responses...)
	c := New(client, opts...)
	t.Cleanup(func() { c.Close() })
	return c, dev
}

func TestSendCommandBaseline(t *testing.T) {
	c, dev := pipeConn(t, nil, []byte{0x06, 0x01}, []byte{0x06, 0x00})
	go dev.run()

	state, err := c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.On, state)

	state, err = c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.Off, state)

	last, ok := c.LastState()
	assert.True(t, ok)
	assert.Equal(t, ledwire.Off, last)
	assert.Equal(t, StateIdle, c.State())
}

func TestSendCommandExtended(t *testing.T) {
	opts := []Option{WithFormat(ledwire.FormatExtended)}
	c, dev := pipeConn(t, opts, []byte{0x06, 0xBB, 0x01}, []byte{0x06, 0xBB, 0x07})
	go dev.run()

	state, err := c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.On, state)

	state, err = c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.On, state, "any nonzero level is on")
}

func TestSendCommandResponses(t *testing.T) {
	tests := []struct {
		name    string
		format  ledwire.Format
		resp    []byte
		want    ledwire.DeviceState
		wantAck bool
	}{
		{name: "baseline off", format: ledwire.FormatBaseline, resp: []byte{0x06, 0x00}, want: ledwire.Off},
		{name: "baseline on", format: ledwire.FormatBaseline, resp: []byte{0x06, 0x01}, want: ledwire.On},
		{name: "baseline 0xFF is on", format: ledwire.FormatBaseline, resp: []byte{0x06, 0xFF}, want: ledwire.On},
		{name: "baseline zero ack", format: ledwire.FormatBaseline, resp: []byte{0x00, 0x00}, wantAck: true},
		{name: "extended on", format: ledwire.FormatExtended, resp: []byte{0x06, 0xBB, 0x01}, want: ledwire.On},
		{name: "extended missing status", format: ledwire.FormatExtended, resp: []byte{0x06, 0x00, 0x01}, wantAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, dev := pipeConn(t, []Option{WithFormat(tt.format)}, tt.resp)
			go dev.run()

			state, err := c.SendCommand(context.Background())
			<-dev.done
			assert.EqualValues(t, 1, dev.requests.Load())
			assert.Zero(t, dev.badRequests.Load(), "request byte was not 0xAA")

			if tt.wantAck {
				assert.ErrorIs(t, err, ledwire.ErrUnexpectedAck)
				assert.Equal(t, KindUnexpectedAck, KindOf(err))
				assert.Equal(t, StateIdle, c.State())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestUnexpectedAckKeepsConnection(t *testing.T) {
	c, dev := pipeConn(t, nil, []byte{0x15, 0x01}, []byte{0x06, 0x01})
	go dev.run()

	_, err := c.SendCommand(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledwire.ErrUnexpectedAck)
	assert.Equal(t, KindUnexpectedAck, KindOf(err))
	assert.Equal(t, StateIdle, c.State())

	_, ok := c.LastState()
	assert.False(t, ok)

	state, err := c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.On, state)
}

func TestPeerCloseIsUnexpectedEOF(t *testing.T) {
	c, dev := pipeConn(t, nil, nil)
	go dev.run()

	_, err := c.SendCommand(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.True(t, IsUnexpectedEOF(err), "got %v", err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, StateClosed, c.State())

	_, err = c.SendCommand(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestPartialResponseIsUnexpectedEOF(t *testing.T) {
	client, server := net.Pipe()
	c := New(client)
	defer c.Close()

	go func() {
		buf := make([]byte, 1)
		io.ReadFull(server, buf)
		server.Write([]byte{0x06})
		server.Close()
	}()

	_, err := c.SendCommand(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnexpectedEOF(err), "got %v", err)
}

// shortWriter accepts nothing and reports no error.
type shortWriter struct {
	closed bool
}

func (w *shortWriter) Read(p []byte) (int, error)  { return 0, io.EOF }
func (w *shortWriter) Write(p []byte) (int, error) { return 0, nil }
func (w *shortWriter) Close() error                { w.closed = true; return nil }

func TestShortWriteIsTransportError(t *testing.T) {
	w := &shortWriter{}
	c := New(w)

	_, err := c.SendCommand(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.True(t, w.closed)
	assert.Equal(t, "*ledconn.shortWriter", c.RemoteAddr())
}

func TestTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := New(client, WithTimeout(30*time.Millisecond))
	defer c.Close()

	go func() {
		buf := make([]byte, 1)
		io.ReadFull(server, buf)
	}()

	_, err := c.SendCommand(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestCancelWhileQueued(t *testing.T) {
	c, dev := pipeConn(t, nil, []byte{0x06, 0x01})
	dev.gate = make(chan struct{})
	go dev.run()

	first := make(chan error, 1)
	go func() {
		_, err := c.SendCommand(context.Background())
		first <- err
	}()

	require.Eventually(t, func() bool { return dev.requests.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateInFlight, c.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SendCommand(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, KindOf(err))

	close(dev.gate)
	require.NoError(t, <-first)
	assert.Equal(t, int32(1), dev.requests.Load())
}

func TestCloseWaitsForInFlight(t *testing.T) {
	c, dev := pipeConn(t, nil, []byte{0x06, 0x01})
	dev.gate = make(chan struct{})
	go dev.run()

	result := make(chan error, 1)
	go func() {
		_, err := c.SendCommand(context.Background())
		result <- err
	}()
	require.Eventually(t, func() bool { return dev.requests.Load() == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a command was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(dev.gate)
	require.NoError(t, <-result)
	<-closed
	assert.Equal(t, StateClosed, c.State())
	assert.NoError(t, c.Close())
}

// listenDevice runs a TCP device that flags any request arriving while a
// previous one is still unanswered.
func listenDevice(t *testing.T) (port uint16, overlaps *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	overlaps = &atomic.Int32{}
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go func(nc net.Conn) {
				defer nc.Close()
				level := byte(0)
				buf := make([]byte, 1)
				for {
					nc.SetReadDeadline(time.Time{})
					if _, err := io.ReadFull(nc, buf); err != nil {
						return
					}
					nc.SetReadDeadline(time.Now().Add(2 * time.Millisecond))
					if n, _ := nc.Read(buf); n > 0 {
						overlaps.Add(1)
					}
					level ^= 1
					if _, err := nc.Write([]byte{0x06, level}); err != nil {
						return
					}
				}
			}(nc)
		}
	}()

	return uint16(ln.Addr().(*net.TCPAddr).Port), overlaps
}

func TestConcurrentCommandsDoNotInterleave(t *testing.T) {
	port, overlaps := listenDevice(t)

	stats := NewStatistics()
	c, err := Dial(context.Background(), "127.0.0.1", port, WithObserver(stats))
	require.NoError(t, err)
	defer c.Close()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := c.SendCommand(context.Background()); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("SendCommand: %v", err)
	}
	assert.Zero(t, overlaps.Load())

	snap := stats.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.Commands)
	assert.Equal(t, uint64(workers*perWorker), snap.Succeeded)

	// an even number of toggles from off ends off
	last, ok := c.LastState()
	assert.True(t, ok)
	assert.Equal(t, ledwire.Off, last)
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	c, err := Dial(context.Background(), "127.0.0.1", port, WithDialTimeout(time.Second))
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Equal(t, KindTransport, KindOf(err))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))), te.Addr)

	nc, err := DialTCP(context.Background(), "127.0.0.1", port, time.Second)
	assert.Nil(t, nc)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))), te.Addr)

	_, err = DialTCP(context.Background(), "", port, time.Second)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDialInvalidAddress(t *testing.T) {
	tests := []struct {
		name string
		host string
		port uint16
	}{
		{"zero port", "127.0.0.1", 0},
		{"empty host", "", 5000},
		{"blank host", "   ", 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Dial(context.Background(), tt.host, tt.port)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.Equal(t, KindInvalidAddress, KindOf(err))
		})
	}
}

func TestObserverSeesExchange(t *testing.T) {
	var got []Exchange
	obs := ObserverFunc(func(ex Exchange) { got = append(got, ex) })

	c, dev := pipeConn(t, []Option{WithObserver(obs)}, []byte{0x06, 0x01}, []byte{0x00, 0x00})
	go dev.run()

	_, err := c.SendCommand(context.Background())
	require.NoError(t, err)
	_, err = c.SendCommand(context.Background())
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []byte{0xAA}, got[0].Request)
	assert.Equal(t, []byte{0x06, 0x01}, got[0].Response)
	assert.Equal(t, ledwire.On, got[0].State)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, []byte{0x00, 0x00}, got[1].Response)
	assert.ErrorIs(t, got[1].Err, ledwire.ErrUnexpectedAck)
}

// noDeadlineConn is a net.Conn that refuses deadlines.
type noDeadlineConn struct {
	net.Conn
}

func (noDeadlineConn) SetDeadline(time.Time) error {
	return errors.New("deadlines not supported")
}

func TestRejectedDeadlineIsLogged(t *testing.T) {
	client, server := net.Pipe()
	dev := newFakeDevice(t, server, []byte{0x06, 0x01})
	go dev.run()

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	c := New(noDeadlineConn{client}, WithTimeout(time.Second), WithLogger(logger))
	defer c.Close()

	state, err := c.SendCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledwire.On, state)
	assert.Contains(t, logs.String(), "transport rejected deadline")
}
