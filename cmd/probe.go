// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/lumen/internal/config"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/spf13/cobra"
)

var probeWindow time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one raw toggle and dump the reply",
	Long: `Send a single toggle command (0xAA) and print every byte the device
sends back within --window, without assuming a response format.

The reply is then matched against the baseline (06 xx) and extended
(06 BB xx) layouts, so probe tells you which --format the firmware needs.
Note that the LED really toggles.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeWindow, "window", 500*time.Millisecond, "How long to collect reply bytes")
	rootCmd.AddCommand(probeCmd)
}

// openTransport opens the configured transport without framing.
func openTransport(ctx context.Context, c *config.Config) (ledconn.Transport, error) {
	switch c.Transport {
	case config.TransportSerial:
		return ledconn.OpenSerial(c.Serial.Device, c.Serial.Baud)
	case config.TransportWebSocket:
		password := ""
		if c.WebSocket.Username != "" {
			var err error
			if password, err = cachedPassword(); err != nil {
				return nil, err
			}
		}
		return ledconn.OpenWebSocket(ctx, c.WebSocket.URL, c.WebSocket.Username, password, c.WebSocket.NoSSLVerify)
	default:
		return ledconn.DialTCP(ctx, c.Host, c.Port, c.DialTimeout)
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	t, err := openTransport(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Lumen - Probe\n")
	fmt.Fprintf(out, "Transport: %s\n\n", cfg.Transport)

	req := ledwire.EncodeToggle()
	start := time.Now()
	if _, err := t.Write(req[:]); err != nil {
		return &ledconn.TransportError{Op: "write", Err: err}
	}
	fmt.Fprintf(out, "TX[%s]\n", ledwire.FormatBytes(req[:]))

	reply := collect(t, probeWindow)
	elapsed := time.Since(start)

	if len(reply) == 0 {
		fmt.Fprintf(out, "RX[] nothing within %v\n", probeWindow)
		return fmt.Errorf("no reply")
	}
	fmt.Fprintf(out, "RX[%s] (%d bytes, %v)\n\n", ledwire.FormatBytes(reply), len(reply), elapsed.Round(time.Millisecond))

	f, state, err := ledwire.Detect(reply)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Format: %s\nLED:    %s\n", f, state)
		if f != cfg.Format {
			fmt.Fprintf(out, "\nConfigured format is %s; use --format %s\n", cfg.Format, f)
		}
	case errors.Is(err, ledwire.ErrUnexpectedAck):
		fmt.Fprintf(out, "Reply has %s length but %v\n", f, err)
	default:
		fmt.Fprintf(out, "Reply matches no known format: %v\n", err)
	}
	return nil
}

// collect reads until window elapses, the peer closes, or a read fails.
func collect(t ledconn.Transport, window time.Duration) []byte {
	type deadliner interface{ SetDeadline(time.Time) error }
	d, ok := t.(deadliner)
	if !ok {
		fmt.Fprintln(os.Stderr, "transport has no deadline support; reading one buffer")
	}

	var reply []byte
	buf := make([]byte, 16)
	end := time.Now().Add(window)
	for time.Now().Before(end) {
		if ok {
			_ = d.SetDeadline(end)
		}
		n, err := t.Read(buf)
		reply = append(reply, buf[:n]...)
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("probe read ended")
			}
			break
		}
		if !ok {
			break
		}
	}
	return reply
}
