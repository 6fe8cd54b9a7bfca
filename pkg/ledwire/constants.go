// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ledwire implements the lumen LED toggle wire protocol.
//
// The protocol has a single request, a one-byte toggle opcode, answered by a
// fixed-length acknowledgement carrying the LED's new level. Two response
// layouts exist: the baseline two-byte form and the extended three-byte form
// that adds a status tag. A device speaks exactly one of them; nothing on the
// wire says which, so both ends are configured with the same Format.
//
// This package performs no I/O and holds no state.
package ledwire

// Opcodes
const (
	ToggleCommand      = 0xAA // Client → device: toggle the LED and report it
	AcknowledgeCommand = 0x06 // Device → client: first byte of every response
	StatusCommand      = 0xBB // Device → client: second byte of extended responses
)

// Message lengths
const (
	RequestLen          = 1
	BaselineResponseLen = 2
	ExtendedResponseLen = 3
)

// Level bytes sent by the reference firmware. Decoding accepts any non-zero
// value as on.
const (
	LevelOff = 0x00
	LevelOn  = 0x01
)
