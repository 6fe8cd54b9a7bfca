// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads lumen settings from defaults, a TOML/YAML/JSON file,
// LUMEN_* environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

// Transports
const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config is the full lumen configuration.
type Config struct {
	ConfigFile  string         `mapstructure:"config"`
	Host        string         `mapstructure:"host"`
	Port        uint16         `mapstructure:"port"`
	Format      ledwire.Format `mapstructure:"format"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	DialTimeout time.Duration  `mapstructure:"dial-timeout"`
	Transport   string         `mapstructure:"transport"`
	Capture     string         `mapstructure:"capture"`

	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Emulate   EmulateConfig   `mapstructure:"emulate"`
}

type SerialConfig struct {
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
}

type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no-ssl-verify"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type ServeConfig struct {
	ListenAddress string     `mapstructure:"listen-address"`
	ListenPort    int        `mapstructure:"listen-port"`
	MQTT          MQTTConfig `mapstructure:"mqtt"`
}

type MQTTConfig struct {
	URL      string `mapstructure:"url"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
}

type EmulateConfig struct {
	Listen  string              `mapstructure:"listen"`
	Initial ledwire.DeviceState `mapstructure:"initial"`
	Fault   string              `mapstructure:"fault"`
}

// Defaults returns the built-in default for every key.
func Defaults() map[string]any {
	return map[string]any{
		"host":                    "192.168.4.1",
		"port":                    5000,
		"format":                  "baseline",
		"timeout":                 "5s",
		"dial-timeout":            ledconn.DefaultDialTimeout.String(),
		"transport":               TransportTCP,
		"capture":                 "",
		"serial.device":           "",
		"serial.baud":             ledconn.DefaultBaudRate,
		"websocket.url":           "",
		"websocket.username":      "",
		"websocket.no-ssl-verify": false,
		"log.level":               "info",
		"log.file":                "",
		"serve.listen-address":    "127.0.0.1",
		"serve.listen-port":       8080,
		"serve.mqtt.url":          "",
		"serve.mqtt.topic":        "lumen/led",
		"serve.mqtt.username":     "",
		"emulate.listen":          ":5000",
		"emulate.initial":         "off",
		"emulate.fault":           "none",
	}
}

// DefaultConfigFile returns the per-user config file path.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "lumen", "lumen.toml")
}

// FindConfigFile returns the per-user config file if one exists.
func FindConfigFile() (string, bool) {
	path, err := xdg.SearchConfigFile(filepath.Join("lumen", "lumen.toml"))
	if err != nil {
		return "", false
	}
	return path, true
}

// Validate checks values that decode cleanly but make no sense.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTCP, TransportSerial, TransportWebSocket:
	default:
		return fmt.Errorf("%w: %q (use tcp, serial or websocket)", ErrInvalidTransport, c.Transport)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Emulate.Fault {
	case "", "none", "bad-ack", "drop":
	default:
		return fmt.Errorf("%w: %q (use none, bad-ack or drop)", ErrInvalidFault, c.Emulate.Fault)
	}

	return nil
}

// ConnOptions returns the ledconn options implied by c.
func (c *Config) ConnOptions() []ledconn.Option {
	return []ledconn.Option{
		ledconn.WithFormat(c.Format),
		ledconn.WithTimeout(c.Timeout),
		ledconn.WithDialTimeout(c.DialTimeout),
	}
}
