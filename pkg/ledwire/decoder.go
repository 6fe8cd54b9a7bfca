// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import "fmt"

// DecodeBaseline decodes a two-byte response: ACK, level.
func DecodeBaseline(resp [BaselineResponseLen]byte) (DeviceState, error) {
	if resp[0] != AcknowledgeCommand {
		return Off, &AckError{Format: FormatBaseline, Got: resp[:]}
	}
	return stateFromLevel(resp[1]), nil
}

// DecodeExtended decodes a three-byte response: ACK, STATUS, level.
func DecodeExtended(resp [ExtendedResponseLen]byte) (DeviceState, error) {
	if resp[0] != AcknowledgeCommand || resp[1] != StatusCommand {
		return Off, &AckError{Format: FormatExtended, Got: resp[:]}
	}
	return stateFromLevel(resp[2]), nil
}

// Decode decodes a complete response of the given format.
// len(resp) must equal f.ResponseLen().
func Decode(f Format, resp []byte) (DeviceState, error) {
	if len(resp) != f.ResponseLen() {
		return Off, fmt.Errorf("%w: got %d bytes, want %d", ErrResponseLength, len(resp), f.ResponseLen())
	}

	switch f {
	case FormatBaseline:
		return DecodeBaseline([BaselineResponseLen]byte(resp))
	case FormatExtended:
		return DecodeExtended([ExtendedResponseLen]byte(resp))
	default:
		return Off, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
}

// Detect identifies the format of a complete response by its length and
// opcode bytes.
func Detect(resp []byte) (Format, DeviceState, error) {
	for _, f := range []Format{FormatExtended, FormatBaseline} {
		if len(resp) != f.ResponseLen() {
			continue
		}
		state, err := Decode(f, resp)
		if err != nil {
			return f, Off, err
		}
		return f, state, nil
	}
	return FormatBaseline, Off, fmt.Errorf("%w: %d byte response", ErrUnknownFormat, len(resp))
}
