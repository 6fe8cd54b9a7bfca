// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedAck is matched by every response whose fixed opcode
	// bytes are wrong.
	ErrUnexpectedAck = errors.New("unexpected acknowledgement")

	// ErrResponseLength is returned when Decode is handed a buffer whose
	// length does not match the format. Callers must read exactly
	// Format.ResponseLen() bytes first; a short read is a transport failure.
	ErrResponseLength = errors.New("response length does not match format")

	ErrUnknownFormat = errors.New("unknown response format")
)

// AckError describes a response that was the right length but carried the
// wrong acknowledgement bytes.
type AckError struct {
	Format Format
	Got    []byte
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%v: got [%s], want [%s] (%s format)",
		ErrUnexpectedAck, FormatBytes(e.Got), FormatBytes(expectedPrefix(e.Format)), e.Format)
}

// Is reports ErrUnexpectedAck.
func (e *AckError) Is(target error) bool {
	return target == ErrUnexpectedAck
}

func expectedPrefix(f Format) []byte {
	if f == FormatExtended {
		return []byte{AcknowledgeCommand, StatusCommand}
	}
	return []byte{AcknowledgeCommand}
}
