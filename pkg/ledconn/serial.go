// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when OpenSerial is given a zero baud rate.
const DefaultBaudRate = 115200

// SerialTransport carries the protocol over a serial port.
type SerialTransport struct {
	port serial.Port
	name string

	mu       sync.Mutex
	deadline time.Time
}

// OpenSerial opens a serial port at 8N1.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	if portName == "" {
		return nil, fmt.Errorf("%w: empty serial device", ErrInvalidAddress)
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Addr: portName, Err: err}
	}

	return &SerialTransport{port: port, name: fmt.Sprintf("%s@%d", portName, baudRate)}, nil
}

// SetDeadline bounds subsequent reads and writes. The zero time blocks
// forever.
func (s *SerialTransport) SetDeadline(t time.Time) error {
	s.mu.Lock()
	s.deadline = t
	s.mu.Unlock()
	return nil
}

// Read blocks until data arrives or the deadline passes. The serial driver
// reports a read timeout as (0, nil); that is turned into a deadline error.
func (s *SerialTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	deadline := s.deadline
	s.mu.Unlock()

	if deadline.IsZero() {
		if err := s.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return 0, err
		}
		return s.port.Read(p)
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, os.ErrDeadlineExceeded
	}
	if err := s.port.SetReadTimeout(remaining); err != nil {
		return 0, err
	}

	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

// Write gives up at the deadline. The driver has no write timeout, so a
// write still pending then keeps running until Close unblocks it.
func (s *SerialTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	deadline := s.deadline
	s.mu.Unlock()

	if deadline.IsZero() {
		return s.port.Write(p)
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, os.ErrDeadlineExceeded
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := s.port.Write(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.n, r.err
	case <-timer.C:
		return 0, os.ErrDeadlineExceeded
	}
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

func (s *SerialTransport) String() string {
	return "serial:" + s.name
}
