// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ledconn drives the ledwire protocol over a byte stream.
//
// A Conn owns exactly one transport and runs one toggle command at a time
// against it. The protocol carries no request identifiers, so concurrent
// callers are queued in arrival order and each holds the transport for a
// full request/response cycle.
//
// A command that has started writing cannot be cancelled: abandoning it
// would leave the next command reading the previous reply. Context
// cancellation is honored only while a caller is still queued, and Close
// waits for the running command before closing the transport.
//
// Errors fall into three kinds that callers can tell apart with KindOf:
//   - *TransportError: dial, write or read failed, including a stream that
//     ended before a full response (wraps io.ErrUnexpectedEOF)
//   - ledwire.ErrUnexpectedAck: the device replied with the wrong opcodes
//   - ErrInvalidAddress: the endpoint could not be used, detected before I/O
package ledconn
