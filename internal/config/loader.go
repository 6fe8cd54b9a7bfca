// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. LUMEN_SERVE_LISTEN_PORT.
const EnvPrefix = "LUMEN"

// Loader builds a Config with precedence defaults < config file <
// environment < explicitly set flags.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a Loader seeded with Defaults.
func NewLoader() *Loader {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// SetConfigFile sets the configuration file path. An empty path reads no
// file.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// SetDefault overrides one default.
func (l *Loader) SetDefault(key string, value any) {
	l.v.SetDefault(key, value)
}

// BindFlags maps config keys to flag names in fs. A flag only takes effect
// when it was set on the command line.
func (l *Loader) BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("%w: --%s for %s", ErrFlagNotFound, name, key)
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the config file, if any, and decodes the merged settings.
func (l *Loader) Load() (*Config, error) {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrConfigFileRead, l.configFile, err)
		}
	}

	var cfg Config
	err := l.v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
	}
	cfg.ConfigFile = l.configFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
