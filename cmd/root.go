// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"

	"github.com/Thermoquad/lumen/internal/config"
	"github.com/Thermoquad/lumen/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configFile string

	// Loaded in PersistentPreRunE
	cfg       *config.Config
	logger    = zerolog.Nop()
	logCloser io.Closer
)

// flagKeys maps config keys to the flags that override them. Flags that a
// command does not define are skipped.
var flagKeys = map[string]string{
	"host":                    "host",
	"port":                    "port",
	"format":                  "format",
	"timeout":                 "timeout",
	"dial-timeout":            "dial-timeout",
	"transport":               "transport",
	"serial.device":           "port-serial",
	"serial.baud":             "baud",
	"websocket.url":           "url",
	"websocket.username":      "username",
	"websocket.no-ssl-verify": "no-ssl-verify",
	"log.level":               "log-level",
	"log.file":                "log-file",
	"capture":                 "capture",
	"serve.listen-address":    "listen-address",
	"serve.listen-port":       "listen-port",
	"serve.mqtt.url":          "mqtt-url",
	"serve.mqtt.topic":        "mqtt-topic",
	"serve.mqtt.username":     "mqtt-username",
	"emulate.listen":          "listen",
	"emulate.initial":         "initial",
	"emulate.fault":           "fault",
}

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "LED-over-TCP controller",
	Long: `Lumen - A CLI tool for controlling a network-attached LED.

The device listens on TCP and answers each toggle command (0xAA) with an
acknowledgement (0x06) and its new LED level. Some firmware builds insert a
status byte (0xBB) after the acknowledgement; select them with
--format extended.

Connection modes:
  TCP:       --host 192.168.4.1 --port 5000
  Serial:    --transport serial --port-serial /dev/ttyUSB0 [--baud 115200]
  WebSocket: --transport websocket --url ws://host/path [--username user]

Settings are read from --config, or from $XDG_CONFIG_HOME/lumen/lumen.toml
when present, and may be overridden by LUMEN_* environment variables and
flags. For WebSocket authentication, the password is read from the
LUMEN_PASSWORD environment variable, or prompted interactively if not set.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/lumen/lumen.toml)")

	// TCP connection flags
	fs.String("host", "", "Device host name or IP address")
	fs.Uint16("port", 0, "Device TCP port")
	fs.String("format", "", "Response format (baseline or extended)")
	fs.Duration("timeout", 0, "Per-command response timeout (0 disables)")
	fs.Duration("dial-timeout", 0, "Connect timeout")
	fs.String("transport", "", "Transport (tcp, serial or websocket)")

	// Serial connection flags
	fs.String("port-serial", "", "Serial port device")
	fs.IntP("baud", "b", 0, "Baud rate (serial only)")

	// WebSocket connection flags
	fs.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	fs.String("username", "", "Username for HTTP Basic auth")
	fs.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to a file")
	fs.String("capture", "", "Append a CBOR record of every exchange to a file")
}

// Execute runs the root command. Long-running commands stop when ctx is
// done.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()

	path := configFile
	if path == "" {
		if found, ok := config.FindConfigFile(); ok {
			path = found
		}
	}
	loader.SetConfigFile(path)

	if err := loader.BindFlags(cmd.Flags(), definedFlags(cmd.Flags())); err != nil {
		return err
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err = logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Discard: cmd == controlCmd,
	})
	if err != nil {
		return err
	}
	logger.Debug().Str("config", path).Str("command", cmd.Name()).Msg("configuration loaded")
	return nil
}

func definedFlags(fs *pflag.FlagSet) map[string]string {
	keys := make(map[string]string, len(flagKeys))
	for key, name := range flagKeys {
		if fs.Lookup(name) != nil {
			keys[key] = name
		}
	}
	return keys
}
