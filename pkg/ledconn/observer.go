// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
)

// Exchange describes one request/response cycle.
type Exchange struct {
	Start    time.Time
	Duration time.Duration
	Remote   string
	Format   ledwire.Format
	Request  []byte
	Response []byte // bytes actually read, possibly fewer than a full response
	State    ledwire.DeviceState
	Err      error
}

// Observer is notified after every exchange. It is called while the Conn is
// still held, so implementations must not block or call back into the Conn.
type Observer interface {
	ObserveExchange(Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Exchange)

func (f ObserverFunc) ObserveExchange(ex Exchange) { f(ex) }

// MultiObserver fans an exchange out to several observers.
type MultiObserver []Observer

func (m MultiObserver) ObserveExchange(ex Exchange) {
	for _, o := range m {
		o.ObserveExchange(ex)
	}
}
