// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/Thermoquad/lumen/internal/capture"
	"github.com/Thermoquad/lumen/internal/config"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"golang.org/x/term"
)

// PasswordEnv holds the WebSocket password.
const PasswordEnv = "LUMEN_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal; read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// cachedPassword prompts at most once per process, so redials do not.
var cachedPassword = sync.OnceValues(GetPassword)

// observers collects the exchange observers every connection gets.
type observers struct {
	stats    *ledconn.Statistics
	recorder *capture.Recorder
}

func newObservers(c *config.Config) (*observers, error) {
	o := &observers{stats: ledconn.NewStatistics()}
	if c.Capture != "" {
		rec, err := capture.Create(c.Capture)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture file: %w", err)
		}
		o.recorder = rec
	}
	return o, nil
}

func (o *observers) options() []ledconn.Option {
	opts := []ledconn.Option{ledconn.WithObserver(o.stats)}
	if o.recorder != nil {
		opts = append(opts, ledconn.WithObserver(o.recorder))
	}
	return opts
}

func (o *observers) Close() error {
	if o.recorder == nil {
		return nil
	}
	if err := o.recorder.Err(); err != nil {
		logger.Warn().Err(err).Msg("capture incomplete")
	}
	return o.recorder.Close()
}

// OpenConnection opens a device connection over the configured transport.
// The returned string describes the connection for display.
func OpenConnection(ctx context.Context, c *config.Config, extra ...ledconn.Option) (*ledconn.Conn, string, error) {
	opts := append(c.ConnOptions(), ledconn.WithLogger(logger))
	opts = append(opts, extra...)

	switch c.Transport {
	case config.TransportSerial:
		t, err := ledconn.OpenSerial(c.Serial.Device, c.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return ledconn.New(t, opts...), fmt.Sprintf("Serial: %s @ %d baud", c.Serial.Device, c.Serial.Baud), nil

	case config.TransportWebSocket:
		password := ""
		if c.WebSocket.Username != "" {
			var err error
			password, err = cachedPassword()
			if err != nil {
				return nil, "", err
			}
		}

		t, err := ledconn.OpenWebSocket(ctx, c.WebSocket.URL, c.WebSocket.Username, password, c.WebSocket.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return ledconn.New(t, opts...), fmt.Sprintf("WebSocket: %s", c.WebSocket.URL), nil

	default:
		conn, err := ledconn.Dial(ctx, c.Host, c.Port, opts...)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("TCP: %s (%s)", conn.RemoteAddr(), c.Format), nil
	}
}
