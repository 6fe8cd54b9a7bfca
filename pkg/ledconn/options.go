// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
	"github.com/rs/zerolog"
)

// DefaultDialTimeout bounds Dial when the context has no deadline.
const DefaultDialTimeout = 10 * time.Second

type options struct {
	format      ledwire.Format
	timeout     time.Duration
	dialTimeout time.Duration
	logger      zerolog.Logger
	observers   []Observer
}

// Option configures a Conn.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		format:      ledwire.FormatBaseline,
		dialTimeout: DefaultDialTimeout,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFormat selects the response format the device speaks.
func WithFormat(f ledwire.Format) Option {
	return func(o *options) { o.format = f }
}

// WithTimeout bounds each full request/response cycle. It only applies to
// transports that support deadlines. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialTimeout bounds Dial. Zero leaves only the context deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers an observer for every exchange. May be repeated.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}
