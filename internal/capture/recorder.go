// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"io"
	"os"
	"sync"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/fxamacker/cbor/v2"
)

// Recorder writes one CBOR record per exchange. It implements
// ledconn.Observer and is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *cbor.Encoder
	err     error
	closed  bool
}

var _ ledconn.Observer = (*Recorder)(nil)

// NewRecorder writes records to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{encoder: encMode.NewEncoder(w)}
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// ObserveExchange implements ledconn.Observer.
func (r *Recorder) ObserveExchange(ex ledconn.Exchange) {
	r.Write(FromExchange(ex))
}

// Write appends rec. The first encoding error is kept and later writes
// are dropped; see Err.
func (r *Recorder) Write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.err != nil {
		return
	}
	r.err = r.encoder.Encode(rec)
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the file opened by Create. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
