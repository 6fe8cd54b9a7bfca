// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledwire

import (
	"errors"
	"testing"
)

func TestEncodeToggle(t *testing.T) {
	got := EncodeToggle()
	if len(got) != 1 {
		t.Fatalf("len(EncodeToggle()) = %d, want 1", len(got))
	}
	if got[0] != 0xAA {
		t.Errorf("EncodeToggle() = 0x%02X, want 0xAA", got[0])
	}
}

func TestDecodeBaseline(t *testing.T) {
	tests := []struct {
		name    string
		resp    [2]byte
		want    DeviceState
		wantAck bool
	}{
		{name: "off", resp: [2]byte{0x06, 0x00}, want: Off},
		{name: "on", resp: [2]byte{0x06, 0x01}, want: On},
		{name: "nonzero is on", resp: [2]byte{0x06, 0xFF}, want: On},
		{name: "other nonzero is on", resp: [2]byte{0x06, 0x7E}, want: On},
		{name: "zero ack", resp: [2]byte{0x00, 0x00}, wantAck: true},
		{name: "toggle echoed back", resp: [2]byte{0xAA, 0x01}, wantAck: true},
		{name: "status byte first", resp: [2]byte{0xBB, 0x01}, wantAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBaseline(tt.resp)
			if tt.wantAck {
				if !errors.Is(err, ErrUnexpectedAck) {
					t.Fatalf("DecodeBaseline(%v) error = %v, want ErrUnexpectedAck", tt.resp, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBaseline(%v) unexpected error: %v", tt.resp, err)
			}
			if got != tt.want {
				t.Errorf("DecodeBaseline(%v) = %v, want %v", tt.resp, got, tt.want)
			}
		})
	}
}

func TestDecodeExtended(t *testing.T) {
	tests := []struct {
		name    string
		resp    [3]byte
		want    DeviceState
		wantAck bool
	}{
		{name: "on", resp: [3]byte{0x06, 0xBB, 0x01}, want: On},
		{name: "off", resp: [3]byte{0x06, 0xBB, 0x00}, want: Off},
		{name: "nonzero is on", resp: [3]byte{0x06, 0xBB, 0xFF}, want: On},
		{name: "wrong status byte", resp: [3]byte{0x06, 0x00, 0x01}, wantAck: true},
		{name: "wrong ack byte", resp: [3]byte{0x00, 0xBB, 0x01}, wantAck: true},
		{name: "baseline reply padded", resp: [3]byte{0x06, 0x01, 0x06}, wantAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeExtended(tt.resp)
			if tt.wantAck {
				if !errors.Is(err, ErrUnexpectedAck) {
					t.Fatalf("DecodeExtended(%v) error = %v, want ErrUnexpectedAck", tt.resp, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeExtended(%v) unexpected error: %v", tt.resp, err)
			}
			if got != tt.want {
				t.Errorf("DecodeExtended(%v) = %v, want %v", tt.resp, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		resp    []byte
		want    DeviceState
		wantErr error
	}{
		{name: "baseline on", format: FormatBaseline, resp: []byte{0x06, 0x01}, want: On},
		{name: "baseline off", format: FormatBaseline, resp: []byte{0x06, 0x00}, want: Off},
		{name: "extended on", format: FormatExtended, resp: []byte{0x06, 0xBB, 0x01}, want: On},
		{name: "baseline bad ack", format: FormatBaseline, resp: []byte{0x00, 0x00}, wantErr: ErrUnexpectedAck},
		{name: "extended bad status", format: FormatExtended, resp: []byte{0x06, 0x00, 0x01}, wantErr: ErrUnexpectedAck},
		{name: "baseline too short", format: FormatBaseline, resp: []byte{0x06}, wantErr: ErrResponseLength},
		{name: "baseline too long", format: FormatBaseline, resp: []byte{0x06, 0xBB, 0x01}, wantErr: ErrResponseLength},
		{name: "extended too short", format: FormatExtended, resp: []byte{0x06, 0x01}, wantErr: ErrResponseLength},
		{name: "empty", format: FormatBaseline, resp: nil, wantErr: ErrResponseLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.format, tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecode_LengthErrorIsNotAckError(t *testing.T) {
	_, err := Decode(FormatBaseline, []byte{0x00})
	if errors.Is(err, ErrUnexpectedAck) {
		t.Errorf("short buffer reported as ErrUnexpectedAck: %v", err)
	}
}

func TestAckError(t *testing.T) {
	_, err := DecodeBaseline([2]byte{0x00, 0x00})

	var ackErr *AckError
	if !errors.As(err, &ackErr) {
		t.Fatalf("error %T is not *AckError", err)
	}
	if ackErr.Format != FormatBaseline {
		t.Errorf("Format = %v, want baseline", ackErr.Format)
	}
	if FormatBytes(ackErr.Got) != "00 00" {
		t.Errorf("Got = %q, want \"00 00\"", FormatBytes(ackErr.Got))
	}

	want := "unexpected acknowledgement: got [00 00], want [06] (baseline format)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	_, err = DecodeExtended([3]byte{0x06, 0x00, 0x01})
	want = "unexpected acknowledgement: got [06 00 01], want [06 BB] (extended format)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEncodeResponse_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatBaseline, FormatExtended} {
		for _, state := range []DeviceState{On, Off} {
			resp := EncodeResponse(format, state)
			if len(resp) != format.ResponseLen() {
				t.Fatalf("EncodeResponse(%v, %v) len = %d, want %d", format, state, len(resp), format.ResponseLen())
			}
			got, err := Decode(format, resp)
			if err != nil {
				t.Fatalf("Decode(%v, % X) error: %v", format, resp, err)
			}
			if got != state {
				t.Errorf("%v round trip: got %v, want %v", format, got, state)
			}
		}
	}
}

func TestDeviceState_String(t *testing.T) {
	if On.String() != "on" {
		t.Errorf("On.String() = %q, want \"on\"", On.String())
	}
	if Off.String() != "off" {
		t.Errorf("Off.String() = %q, want \"off\"", Off.String())
	}
	if On.Toggled() != Off || Off.Toggled() != On {
		t.Error("Toggled() did not invert state")
	}
}

func TestDeviceState_Text(t *testing.T) {
	text, err := On.MarshalText()
	if err != nil || string(text) != "on" {
		t.Fatalf("MarshalText() = %q, %v", text, err)
	}

	var s DeviceState
	if err := s.UnmarshalText([]byte("on")); err != nil {
		t.Fatalf("UnmarshalText(on) error: %v", err)
	}
	if s != On {
		t.Errorf("UnmarshalText(on) = %v", s)
	}
	if err := s.UnmarshalText([]byte("dim")); err == nil {
		t.Error("UnmarshalText(dim) expected error")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "baseline", want: FormatBaseline},
		{in: "", want: FormatBaseline},
		{in: "extended", want: FormatExtended},
		{in: "v2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.in != "" && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes([]byte{0x06, 0xBB, 0x01}); got != "06 BB 01" {
		t.Errorf("FormatBytes() = %q, want \"06 BB 01\"", got)
	}
	if got := FormatBytes(nil); got != "" {
		t.Errorf("FormatBytes(nil) = %q, want empty", got)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		resp       []byte
		wantFormat Format
		wantState  DeviceState
		wantErr    error
	}{
		{name: "baseline on", resp: []byte{0x06, 0x01}, wantFormat: FormatBaseline, wantState: On},
		{name: "baseline off", resp: []byte{0x06, 0x00}, wantFormat: FormatBaseline, wantState: Off},
		{name: "extended on", resp: []byte{0x06, 0xBB, 0x01}, wantFormat: FormatExtended, wantState: On},
		{name: "three bytes without status", resp: []byte{0x06, 0x00, 0x01}, wantFormat: FormatExtended, wantErr: ErrUnexpectedAck},
		{name: "nak", resp: []byte{0x15, 0x01}, wantFormat: FormatBaseline, wantErr: ErrUnexpectedAck},
		{name: "empty", resp: nil, wantErr: ErrUnknownFormat},
		{name: "too long", resp: []byte{0x06, 0xBB, 0x01, 0x00}, wantErr: ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, state, err := Detect(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Detect(% X) error = %v, want %v", tt.resp, err, tt.wantErr)
				}
				if errors.Is(tt.wantErr, ErrUnexpectedAck) && f != tt.wantFormat {
					t.Errorf("Detect(% X) format = %v, want %v", tt.resp, f, tt.wantFormat)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect(% X) unexpected error: %v", tt.resp, err)
			}
			if f != tt.wantFormat || state != tt.wantState {
				t.Errorf("Detect(% X) = %v, %v, want %v, %v", tt.resp, f, state, tt.wantFormat, tt.wantState)
			}
		})
	}
}
