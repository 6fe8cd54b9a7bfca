// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records toggle exchanges to a CBOR file and reads them
// back.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
)

// Record is one captured exchange.
type Record struct {
	Time     time.Time     `cbor:"1,keyasint"`
	Duration time.Duration `cbor:"2,keyasint"`
	Remote   string        `cbor:"3,keyasint,omitempty"`
	Format   string        `cbor:"4,keyasint"`
	Request  []byte        `cbor:"5,keyasint"`
	Response []byte        `cbor:"6,keyasint,omitempty"`
	State    string        `cbor:"7,keyasint,omitempty"`
	Error    string        `cbor:"8,keyasint,omitempty"`
	Kind     string        `cbor:"9,keyasint,omitempty"`
}

// FromExchange converts an exchange into a Record. State is only set when
// the exchange succeeded.
func FromExchange(ex ledconn.Exchange) Record {
	r := Record{
		Time:     ex.Start,
		Duration: ex.Duration,
		Remote:   ex.Remote,
		Format:   ex.Format.String(),
		Request:  append([]byte(nil), ex.Request...),
		Response: append([]byte(nil), ex.Response...),
	}
	if ex.Err != nil {
		r.Error = ex.Err.Error()
		r.Kind = ledconn.KindOf(ex.Err).String()
	} else {
		r.State = ex.State.String()
	}
	return r
}

// Format renders a record as one line.
func Format(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-21s TX[%s] RX[%s] %8s",
		r.Time.Format("15:04:05.000"),
		r.Remote,
		ledwire.FormatBytes(r.Request),
		ledwire.FormatBytes(r.Response),
		r.Duration.Round(time.Microsecond),
	)
	if r.Error != "" {
		fmt.Fprintf(&b, " ERROR(%s): %s", r.Kind, r.Error)
	} else {
		fmt.Fprintf(&b, " LED %s", strings.ToUpper(r.State))
	}
	return b.String()
}
