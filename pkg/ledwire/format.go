// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import "fmt"

// Format selects the response layout a device uses.
type Format int

// Response formats
const (
	FormatBaseline Format = iota // ACK, level
	FormatExtended               // ACK, STATUS, level
)

// ResponseLen returns the number of bytes in a response of this format.
func (f Format) ResponseLen() int {
	if f == FormatExtended {
		return ExtendedResponseLen
	}
	return BaselineResponseLen
}

// String returns the format name used in configuration.
func (f Format) String() string {
	switch f {
	case FormatBaseline:
		return "baseline"
	case FormatExtended:
		return "extended"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "baseline" or "extended".
func ParseFormat(v string) (Format, error) {
	switch v {
	case "baseline", "":
		return FormatBaseline, nil
	case "extended":
		return FormatExtended, nil
	default:
		return FormatBaseline, fmt.Errorf("%w: %q (use baseline or extended)", ErrUnknownFormat, v)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
