// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Summary tallies records for display.
type Summary struct {
	Total  int
	Failed int
	RTT    time.Duration // sum over successful records
	kinds  map[string]int
}

// Add counts rec.
func (s *Summary) Add(rec Record) {
	s.Total++
	if rec.Error == "" {
		s.RTT += rec.Duration
		return
	}
	s.Failed++
	if s.kinds == nil {
		s.kinds = make(map[string]int)
	}
	s.kinds[rec.Kind]++
}

// Kinds returns the failure kinds seen, sorted.
func (s *Summary) Kinds() []string {
	kinds := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// AvgRTT is the mean duration of successful records.
func (s *Summary) AvgRTT() time.Duration {
	ok := s.Total - s.Failed
	if ok == 0 {
		return 0
	}
	return s.RTT / time.Duration(ok)
}

func (s *Summary) String() string {
	var b strings.Builder
	b.WriteString("=== Summary ===\n")
	fmt.Fprintf(&b, "Exchanges: %d\n", s.Total)
	fmt.Fprintf(&b, "Succeeded: %d\n", s.Total-s.Failed)
	fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)
	for _, kind := range s.Kinds() {
		fmt.Fprintf(&b, "  %-16s %d\n", kind+":", s.kinds[kind])
	}
	if s.Total > s.Failed {
		fmt.Fprintf(&b, "Avg RTT:   %v\n", s.AvgRTT().Round(time.Microsecond))
	}
	return b.String()
}
