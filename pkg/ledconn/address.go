// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePort parses a TCP port number typed by a user.
func ParsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%w: port %q must be a number between 1 and 65535", ErrInvalidAddress, s)
	}
	return uint16(port), nil
}

// JoinAddress validates host and port and returns a "host:port" dial string.
func JoinAddress(host string, port uint16) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if port == 0 {
		return "", fmt.Errorf("%w: port 0", ErrInvalidAddress)
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}
