// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics counts what the engine has seen since it started
type Statistics struct {
	LinesReceived   uint64
	Accepted        uint64
	Invalid         uint64
	MalformedNumber uint64
	BytesDropped    uint64
	WatchdogTrips   uint64
	OutputErrors    uint64

	PerKind [numCommandKinds]uint64
}

// record counts one dispatched line
func (s *Statistics) record(cmd Command, err error) {
	s.LinesReceived++
	s.PerKind[cmd.Kind]++
	if err == nil {
		s.Accepted++
		return
	}
	s.Invalid++
	if errors.Is(err, ErrMalformedNumber) {
		s.MalformedNumber++
	}
}

// Count returns the number of lines classified as kind
func (s Statistics) Count(kind CommandKind) uint64 {
	if kind >= numCommandKinds {
		return 0
	}
	return s.PerKind[kind]
}

// String returns a one-line summary suitable for a log message
func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "lines=%d accepted=%d invalid=%d", s.LinesReceived, s.Accepted, s.Invalid)
	for k := KindStatus; k < numCommandKinds; k++ {
		if s.PerKind[k] > 0 {
			fmt.Fprintf(&b, " %s=%d", k, s.PerKind[k])
		}
	}
	if s.BytesDropped > 0 {
		fmt.Fprintf(&b, " dropped_bytes=%d", s.BytesDropped)
	}
	if s.WatchdogTrips > 0 {
		fmt.Fprintf(&b, " watchdog_trips=%d", s.WatchdogTrips)
	}
	if s.OutputErrors > 0 {
		fmt.Fprintf(&b, " output_errors=%d", s.OutputErrors)
	}
	return b.String()
}

// LinkStatistics tracks host-side request/response health
type LinkStatistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Requests         uint64
	Responses        uint64
	ValidResponses   uint64
	InvalidReplies   uint64 // device answered Invalid
	MalformedReplies uint64 // response did not parse
	Timeouts         uint64

	// Round trip
	MinRTT   time.Duration
	MaxRTT   time.Duration
	TotalRTT time.Duration

	// Rates (calculated)
	ResponseRate float64 // responses/sec
	ErrorRate    float64 // errors/sec
}

// NewLinkStatistics creates a new link statistics tracker
func NewLinkStatistics() *LinkStatistics {
	now := time.Now()
	return &LinkStatistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of one request
func (s *LinkStatistics) Update(rtt time.Duration, err error) {
	s.Requests++
	s.LastUpdateTime = time.Now()

	switch {
	case err == nil:
		s.Responses++
		s.ValidResponses++
	case errors.Is(err, ErrTimeout):
		s.Timeouts++
		return
	case errors.Is(err, ErrRejected):
		s.Responses++
		s.InvalidReplies++
	default:
		s.Responses++
		s.MalformedReplies++
	}

	if s.MinRTT == 0 || rtt < s.MinRTT {
		s.MinRTT = rtt
	}
	if rtt > s.MaxRTT {
		s.MaxRTT = rtt
	}
	s.TotalRTT += rtt
}

// AverageRTT returns the mean round trip of answered requests
func (s *LinkStatistics) AverageRTT() time.Duration {
	if s.Responses == 0 {
		return 0
	}
	return s.TotalRTT / time.Duration(s.Responses)
}

// CalculateRates calculates response and error rates
func (s *LinkStatistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ResponseRate = float64(s.Responses) / elapsed
		s.ErrorRate = float64(s.InvalidReplies+s.MalformedReplies+s.Timeouts) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *LinkStatistics) String() string {
	s.CalculateRates()

	var validPercent, timeoutPercent float64
	if s.Requests > 0 {
		validPercent = float64(s.ValidResponses) * 100.0 / float64(s.Requests)
		timeoutPercent = float64(s.Timeouts) * 100.0 / float64(s.Requests)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Requests:        %8d\n", s.Requests)
	result += fmt.Sprintf("Valid Responses: %8d (%.1f%%)\n", s.ValidResponses, validPercent)
	if s.InvalidReplies > 0 {
		result += fmt.Sprintf("Invalid Replies: %8d\n", s.InvalidReplies)
	}
	if s.MalformedReplies > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", s.MalformedReplies)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, timeoutPercent)
	}
	if s.Responses > 0 {
		result += fmt.Sprintf("RTT min/avg/max: %v / %v / %v\n", s.MinRTT, s.AverageRTT(), s.MaxRTT)
	}
	result += fmt.Sprintf("Response Rate:   %8.1f resp/sec\n", s.ResponseRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset resets all statistics counters
func (s *LinkStatistics) Reset() {
	*s = *NewLinkStatistics()
}
