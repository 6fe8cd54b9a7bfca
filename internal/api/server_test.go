// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Thermoquad/lumen/internal/emulator"
	"github.com/Thermoquad/lumen/internal/link"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dev    *emulator.Device
	server *Server
	stats  *ledconn.Statistics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	dev := emulator.New(emulator.Config{Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dev.Serve(ctx, ln)
		close(done)
	}()

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	stats := ledconn.NewStatistics()
	l := link.New(func(ctx context.Context) (*ledconn.Conn, error) {
		return ledconn.Dial(ctx, "127.0.0.1", port, ledconn.WithObserver(stats))
	}, zerolog.Nop())

	t.Cleanup(func() {
		l.Close()
		cancel()
		<-done
	})

	return &testEnv{
		dev:    dev,
		server: NewServer(Config{}, l, stats, zerolog.Nop()),
		stats:  stats,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestToggleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/toggle")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"state": "on"}, body["data"])

	_, body = env.do(t, http.MethodPost, "/toggle")
	assert.Equal(t, map[string]any{"state": "off"}, body["data"])
}

func TestStateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/state")
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["known"])
	assert.Equal(t, false, data["connected"])

	env.do(t, http.MethodPost, "/toggle")

	_, body = env.do(t, http.MethodGet, "/state")
	data = body["data"].(map[string]any)
	assert.Equal(t, "on", data["state"])
	assert.Equal(t, true, data["known"])
	assert.Equal(t, true, data["connected"])
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/toggle")
	}

	w, body := env.do(t, http.MethodGet, "/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	counters := body["data"].(map[string]any)["counters"].(map[string]any)
	assert.Equal(t, float64(3), counters["commands"])
	assert.Equal(t, float64(3), counters["succeeded"])
}

func TestToggleErrors(t *testing.T) {
	tests := []struct {
		name     string
		fault    emulator.Fault
		wantCode int
		wantKind string
	}{
		{"unexpected ack", emulator.FaultBadAck, http.StatusBadGateway, "unexpected_ack"},
		{"dropped", emulator.FaultDropAfterCommand, http.StatusBadGateway, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.dev.SetFault(tt.fault)

			w, body := env.do(t, http.MethodPost, "/toggle")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("dial: %w", ledconn.ErrInvalidAddress), http.StatusInternalServerError},
		{&ledconn.TransportError{Op: "dial", Err: fmt.Errorf("refused")}, http.StatusBadGateway},
		{context.Canceled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestStatsDisabled(t *testing.T) {
	s := NewServer(Config{}, link.New(nil, zerolog.Nop()), nil, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeShutsDown(t *testing.T) {
	env := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/state", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * DefaultShutdownTimeout):
		t.Fatal("Serve did not return")
	}
}
