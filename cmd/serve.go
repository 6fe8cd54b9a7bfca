// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"

	"github.com/Thermoquad/lumen/internal/api"
	"github.com/Thermoquad/lumen/internal/link"
	"github.com/Thermoquad/lumen/internal/mqtt"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// MQTTPasswordEnv holds the broker password.
const MQTTPasswordEnv = "LUMEN_MQTT_PASSWORD"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the LED over HTTP and MQTT",
	Long: `Expose the LED over an HTTP API and, optionally, an MQTT bridge.

HTTP endpoints:
  POST /toggle   toggle the LED and return the reported state
  GET  /state    last known state and connection status
  GET  /stats    command statistics

The device is dialed on the first request and redialed after a
transport failure. Requests are queued and sent one at a time.

MQTT (enabled by --mqtt-url):
  <topic>/toggle  payload "", "toggle", "on" or "off"
  <topic>/state   retained "on"/"off" after every toggle

The broker password is read from ` + MQTTPasswordEnv + `.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen-address", "", "HTTP listen address")
	serveCmd.Flags().Int("listen-port", 0, "HTTP listen port")
	serveCmd.Flags().String("mqtt-url", "", "MQTT broker URL (mqtt://, tcp://, ssl://, ws://)")
	serveCmd.Flags().String("mqtt-topic", "", "MQTT topic prefix")
	serveCmd.Flags().String("mqtt-username", "", "MQTT username")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	obs, err := newObservers(cfg)
	if err != nil {
		return err
	}
	defer obs.Close()

	dev := link.New(func(ctx context.Context) (*ledconn.Conn, error) {
		conn, _, err := OpenConnection(ctx, cfg, obs.options()...)
		return conn, err
	}, logger.With().Str("component", "link").Logger())
	defer dev.Close()

	server := api.NewServer(api.Config{
		ListenAddress: cfg.Serve.ListenAddress,
		ListenPort:    cfg.Serve.ListenPort,
		ToggleTimeout: cfg.Timeout,
	}, dev, obs.stats, logger.With().Str("component", "api").Logger())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})

	if cfg.Serve.MQTT.URL != "" {
		mqttCfg := mqtt.Config{
			ServerURL: cfg.Serve.MQTT.URL,
			Username:  cfg.Serve.MQTT.Username,
			Password:  os.Getenv(MQTTPasswordEnv),
			Logger:    logger.With().Str("component", "mqtt").Logger(),
		}
		g.Go(func() error {
			return mqtt.Run(ctx, mqttCfg, cfg.Serve.MQTT.Topic, dev)
		})
	}

	logger.Info().
		Str("listen", cfg.Serve.ListenAddress).
		Int("port", cfg.Serve.ListenPort).
		Str("transport", cfg.Transport).
		Bool("mqtt", cfg.Serve.MQTT.URL != "").
		Msg("serving")

	return g.Wait()
}
