// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import (
	"fmt"
	"strings"
)

// EncodeToggle returns the toggle request.
func EncodeToggle() [RequestLen]byte {
	return [RequestLen]byte{ToggleCommand}
}

// EncodeResponse builds the device side reply reporting state.
func EncodeResponse(f Format, state DeviceState) []byte {
	if f == FormatExtended {
		return []byte{AcknowledgeCommand, StatusCommand, StateByte(state)}
	}
	return []byte{AcknowledgeCommand, StateByte(state)}
}

// FormatBytes renders bytes as space separated hex, e.g. "06 BB 01".
func FormatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
