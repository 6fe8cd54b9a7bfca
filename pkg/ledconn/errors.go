// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/Thermoquad/lumen/pkg/ledwire"
)

var (
	// ErrInvalidAddress is returned before any I/O when the host or port
	// cannot be used.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrClosed is wrapped in a TransportError when a command is sent on a
	// Conn whose transport has been closed.
	ErrClosed = errors.New("connection closed")
)

// TransportError reports a failure of the underlying byte stream.
type TransportError struct {
	Op   string // "dial", "open", "write", "read" or "send"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiring.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ErrorKind classifies errors returned by this package.
type ErrorKind int

// Error kinds
const (
	KindNone ErrorKind = iota
	KindTransport
	KindUnexpectedAck
	KindInvalidAddress
	KindCanceled
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindUnexpectedAck:
		return "unexpected_ack"
	case KindInvalidAddress:
		return "invalid_address"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var te *TransportError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ledwire.ErrUnexpectedAck):
		return KindUnexpectedAck
	case errors.As(err, &te):
		return KindTransport
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

// IsUnexpectedEOF reports whether err is a transport error caused by the
// stream ending before a full response arrived.
func IsUnexpectedEOF(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && errors.Is(te.Err, io.ErrUnexpectedEOF)
}

// IsTimeout reports whether err is a transport error caused by a deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}
