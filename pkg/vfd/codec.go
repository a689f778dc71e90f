// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// Motor settings
// ============================================================

// FormatVoltage renders v as a signed scientific literal with VoltageDigits
// significant digits, e.g. +2.13000e+00.
func FormatVoltage(v float64) string {
	s := strconv.FormatFloat(v, 'e', VoltageDigits-1, 64)
	if s[0] != '-' && s[0] != '+' {
		s = "+" + s
	}
	return s
}

// EncodeMotorSettings serializes states as
//
//	<run letters> <direction letters> <v0>[ <vi>]*
//
// which is both the MotorSettings? response and a valid SetMotors payload.
func EncodeMotorSettings(states []MotorState) string {
	var b strings.Builder
	b.Grow(2*len(states) + 2 + len(states)*(VoltageDigits+7))

	for _, s := range states {
		if s.Running {
			b.WriteByte(LetterRun)
		} else {
			b.WriteByte(LetterStop)
		}
	}
	b.WriteByte(' ')
	for _, s := range states {
		if s.Reversed {
			b.WriteByte(LetterReverse)
		} else {
			b.WriteByte(LetterForward)
		}
	}
	for _, s := range states {
		b.WriteByte(' ')
		b.WriteString(FormatVoltage(s.Voltage))
	}
	return b.String()
}

// DecodeMotorSettings parses a SetMotors payload (or a MotorSettings? response)
// for n motors. The checks run in wire order and stop at the first failure:
// length, run letters, separator, direction letters, separator, then each
// voltage token. NaN and infinite voltages are rejected even when spelled as
// named values. On error no state is returned.
func DecodeMotorSettings(text string, n int) ([]MotorState, error) {
	if n < 1 || n > MaxMotors {
		return nil, fmt.Errorf("%w: %d", ErrMotorCount, n)
	}

	// n run letters, space, n direction letters, space, n one-byte tokens with
	// n-1 spaces between them
	if minLen := 4*n + 1; len(text) < minLen {
		return nil, payloadError(len(text), "payload too short: %d bytes, need at least %d", len(text), minLen)
	}

	var staged [MaxMotors]MotorState

	for i := 0; i < n; i++ {
		switch text[i] {
		case LetterRun:
			staged[i].Running = true
		case LetterStop:
			staged[i].Running = false
		default:
			return nil, payloadError(i, "run letter %q for motor %d is not %c or %c", text[i], i, LetterRun, LetterStop)
		}
	}

	pos := n
	if text[pos] != ' ' {
		return nil, payloadError(pos, "missing separator after run letters")
	}
	pos++

	for i := 0; i < n; i++ {
		switch c := text[pos+i]; c {
		case LetterForward:
			staged[i].Reversed = false
		case LetterReverse:
			staged[i].Reversed = true
		default:
			return nil, payloadError(pos+i, "direction letter %q for motor %d is not %c or %c", c, i, LetterForward, LetterReverse)
		}
	}

	pos += n
	if text[pos] != ' ' {
		return nil, payloadError(pos, "missing separator after direction letters")
	}
	pos++

	rest := text[pos:]
	for i := 0; i < n; i++ {
		token := rest
		if i < n-1 {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				return nil, payloadError(pos+len(rest), "missing voltage for motor %d", i+1)
			}
			token = rest[:sp]
		}

		if token == "" {
			return nil, payloadError(pos, "empty voltage for motor %d", i)
		}
		if ws := strings.IndexAny(token, " \t\r\n\v\f"); ws >= 0 {
			return nil, payloadError(pos+ws, "unexpected whitespace in voltage for motor %d", i)
		}

		v := ParseLiteral(token)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, numberError(pos, token)
		}
		staged[i].Voltage = v

		if i < n-1 {
			pos += len(token) + 1
			rest = rest[len(token)+1:]
		}
	}

	out := make([]MotorState, n)
	copy(out, staged[:n])
	return out, nil
}

// ============================================================
// Configuration queries
// ============================================================

// PinPair is one motor's run/stop and direction output channel names
type PinPair struct {
	Run string
	Dir string
}

// FrequencyRange is the drive frequency span one motor's voltage range maps onto
type FrequencyRange struct {
	MinHz float64
	MaxHz float64
}

// EncodeMotorControlPins renders <run0>,<dir0>[ <runi>,<diri>]*
func EncodeMotorControlPins(motors []MotorConfig) string {
	parts := make([]string, len(motors))
	for i, m := range motors {
		parts[i] = m.RunChannel + "," + m.DirChannel
	}
	return strings.Join(parts, " ")
}

// EncodeFrequencyConfig renders <min0>,<max0>[ <mini>,<maxi>]* as scientific literals
func EncodeFrequencyConfig(motors []MotorConfig) string {
	parts := make([]string, len(motors))
	for i, m := range motors {
		parts[i] = FormatVoltage(m.MinFrequencyHz) + "," + FormatVoltage(m.MaxFrequencyHz)
	}
	return strings.Join(parts, " ")
}

// ParseMotorControlPins parses a MotorControlPins? response
func ParseMotorControlPins(resp string) ([]PinPair, error) {
	fields := strings.Fields(resp)
	if len(fields) == 0 || len(fields) > MaxMotors {
		return nil, fmt.Errorf("%w: %d pin pairs", ErrMotorCount, len(fields))
	}
	out := make([]PinPair, len(fields))
	for i, f := range fields {
		run, dir, ok := strings.Cut(f, ",")
		if !ok || run == "" || dir == "" {
			return nil, fmt.Errorf("%w: pin pair %q", ErrUnexpectedReply, f)
		}
		out[i] = PinPair{Run: run, Dir: dir}
	}
	return out, nil
}

// ParseFrequencyConfig parses a FrequencyConfig? response
func ParseFrequencyConfig(resp string) ([]FrequencyRange, error) {
	fields := strings.Fields(resp)
	if len(fields) == 0 || len(fields) > MaxMotors {
		return nil, fmt.Errorf("%w: %d frequency ranges", ErrMotorCount, len(fields))
	}
	out := make([]FrequencyRange, len(fields))
	for i, f := range fields {
		lo, hi, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("%w: frequency range %q", ErrUnexpectedReply, f)
		}
		minHz, maxHz := ParseLiteral(lo), ParseLiteral(hi)
		if math.IsNaN(minHz) || math.IsNaN(maxHz) {
			return nil, fmt.Errorf("%w: frequency range %q", ErrUnexpectedReply, f)
		}
		out[i] = FrequencyRange{MinHz: minHz, MaxHz: maxHz}
	}
	return out, nil
}
