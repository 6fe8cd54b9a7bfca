// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"errors"
	"net/http"

	"github.com/Thermoquad/lumen/pkg/ledconn"
)

// ErrServerStart is returned when the listener cannot be opened.
var ErrServerStart = errors.New("failed to start API server")

// statusFor maps a toggle error to an HTTP status code.
func statusFor(err error) int {
	switch ledconn.KindOf(err) {
	case ledconn.KindNone:
		return http.StatusOK
	case ledconn.KindTransport, ledconn.KindUnexpectedAck:
		return http.StatusBadGateway
	case ledconn.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		// InvalidAddress is a server misconfiguration
		return http.StatusInternalServerError
	}
}
