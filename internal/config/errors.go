// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import "errors"

// Configuration loading errors
var (
	ErrConfigFileRead  = errors.New("failed to read config file")
	ErrConfigUnmarshal = errors.New("failed to unmarshal config")
	ErrFlagNotFound    = errors.New("flag not found")
)

// Configuration validation errors
var (
	ErrInvalidTransport = errors.New("invalid transport")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidFault     = errors.New("invalid emulator fault")
)
