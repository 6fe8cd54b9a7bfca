// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ledconn

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledwire"
)

// StatsSnapshot is a point-in-time copy of Statistics.
type StatsSnapshot struct {
	StartTime   time.Time     `json:"start_time"`
	LastTime    time.Time     `json:"last_time,omitempty"`
	Commands    uint64        `json:"commands"`
	Succeeded   uint64        `json:"succeeded"`
	ReportedOn  uint64        `json:"reported_on"`
	ReportedOff uint64        `json:"reported_off"`
	Transport   uint64        `json:"transport_errors"`
	BadAcks     uint64        `json:"unexpected_acks"`
	EOFs        uint64        `json:"unexpected_eofs"`
	Timeouts    uint64        `json:"timeouts"`
	TotalRTT    time.Duration `json:"total_rtt_ns"`
	MinRTT      time.Duration `json:"min_rtt_ns"`
	MaxRTT      time.Duration `json:"max_rtt_ns"`
}

// AvgRTT is the mean round trip of successful commands.
func (s StatsSnapshot) AvgRTT() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.TotalRTT / time.Duration(s.Succeeded)
}

// Statistics counts command outcomes. It is an Observer and safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: StatsSnapshot{StartTime: time.Now()}}
}

// ObserveExchange implements Observer.
func (st *Statistics) ObserveExchange(ex Exchange) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := &st.s
	s.Commands++
	s.LastTime = ex.Start.Add(ex.Duration)

	switch KindOf(ex.Err) {
	case KindNone:
		s.Succeeded++
		if ex.State == ledwire.On {
			s.ReportedOn++
		} else {
			s.ReportedOff++
		}
		s.TotalRTT += ex.Duration
		if s.MinRTT == 0 || ex.Duration < s.MinRTT {
			s.MinRTT = ex.Duration
		}
		if ex.Duration > s.MaxRTT {
			s.MaxRTT = ex.Duration
		}
	case KindUnexpectedAck:
		s.BadAcks++
	case KindTransport:
		s.Transport++
		if IsUnexpectedEOF(ex.Err) {
			s.EOFs++
		}
		if IsTimeout(ex.Err) {
			s.Timeouts++
		}
	}
}

// Snapshot returns a copy of the counters.
func (st *Statistics) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Reset clears all counters and restarts the clock.
func (st *Statistics) Reset() {
	st.mu.Lock()
	st.s = StatsSnapshot{StartTime: time.Now()}
	st.mu.Unlock()
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	s := st.Snapshot()
	elapsed := time.Since(s.StartTime)

	var okPercent float64
	if s.Commands > 0 {
		okPercent = float64(s.Succeeded) * 100.0 / float64(s.Commands)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Commands:        %8d\n", s.Commands)
	fmt.Fprintf(&b, "Acknowledged:    %8d (%.1f%%)\n", s.Succeeded, okPercent)
	if s.Succeeded > 0 {
		fmt.Fprintf(&b, "  LED on/off:   %5d / %d\n", s.ReportedOn, s.ReportedOff)
	}
	if s.BadAcks > 0 {
		fmt.Fprintf(&b, "Unexpected Acks: %8d\n", s.BadAcks)
	}
	if s.Transport > 0 {
		fmt.Fprintf(&b, "Transport Errs:  %8d\n", s.Transport)
		if s.EOFs > 0 {
			fmt.Fprintf(&b, "  Unexpected EOF:   %5d\n", s.EOFs)
		}
		if s.Timeouts > 0 {
			fmt.Fprintf(&b, "  Timeouts:         %5d\n", s.Timeouts)
		}
	}
	if s.Succeeded > 0 {
		fmt.Fprintf(&b, "RTT min/avg/max: %v / %v / %v\n", s.MinRTT, s.AvgRTT(), s.MaxRTT)
	}
	b.WriteString("================================\n")
	return b.String()
}
