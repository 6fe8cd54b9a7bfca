// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import "fmt"

// DeviceState is the LED level last reported by a device.
type DeviceState int

// Device states
const (
	Off DeviceState = iota
	On
)

// String returns "on" or "off".
func (s DeviceState) String() string {
	if s == On {
		return "on"
	}
	return "off"
}

// Toggled returns the opposite state.
func (s DeviceState) Toggled() DeviceState {
	if s == On {
		return Off
	}
	return On
}

// MarshalText renders the state as "on" or "off".
func (s DeviceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "on" and "off".
func (s *DeviceState) UnmarshalText(text []byte) error {
	state, err := ParseDeviceState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// ParseDeviceState parses "on" or "off".
func ParseDeviceState(v string) (DeviceState, error) {
	switch v {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	default:
		return Off, fmt.Errorf("invalid device state %q (use on or off)", v)
	}
}

// stateFromLevel maps a level byte to a state: zero is off, anything else on.
func stateFromLevel(b byte) DeviceState {
	if b == LevelOff {
		return Off
	}
	return On
}

// StateByte returns the level byte the firmware sends for a state.
func StateByte(s DeviceState) byte {
	if s == On {
		return LevelOn
	}
	return LevelOff
}
