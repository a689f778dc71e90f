// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"fmt"
	"strings"
)

// FormatCommandKind returns the human-readable name for a command kind
func FormatCommandKind(kind CommandKind) string {
	switch kind {
	case KindStatus:
		return "STATUS"
	case KindMotorSettings:
		return "MOTOR_SETTINGS"
	case KindHalt:
		return "HALT"
	case KindSetMotors:
		return "SET_MOTORS"
	case KindVersion:
		return "VERSION"
	case KindNumberMotors:
		return "NUMBER_MOTORS"
	case KindMotorControlPins:
		return "MOTOR_CONTROL_PINS"
	case KindFrequencyConfig:
		return "FREQUENCY_CONFIG"
	case KindUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(kind))
	}
}

// FormatMotorState formats one motor's state, e.g. "RUN FWD +2.13000e+00 V"
func FormatMotorState(s MotorState) string {
	run := "STOP"
	if s.Running {
		run = "RUN "
	}
	dir := "FWD"
	if s.Reversed {
		dir = "REV"
	}
	return fmt.Sprintf("%s %s %s V", run, dir, FormatVoltage(s.Voltage))
}

// FormatMotorStates formats every motor on its own indented line
func FormatMotorStates(states []MotorState) string {
	var b strings.Builder
	for i, s := range states {
		fmt.Fprintf(&b, "  Motor %d: %s\n", i, FormatMotorState(s))
	}
	return b.String()
}

// FormatOutput formats one motor's hardware image
func FormatOutput(o Output) string {
	return fmt.Sprintf("run=%s dir=%s code=%d", formatLevel(o.RunLevel), formatLevel(o.DirLevel), o.Code)
}

func formatLevel(level bool) string {
	if level {
		return "HIGH"
	}
	return "LOW"
}

// FormatPinPairs formats a MotorControlPins? answer
func FormatPinPairs(pins []PinPair) string {
	var b strings.Builder
	for i, p := range pins {
		fmt.Fprintf(&b, "  Motor %d: run=%s dir=%s\n", i, p.Run, p.Dir)
	}
	return b.String()
}

// FormatFrequencyRanges formats a FrequencyConfig? answer
func FormatFrequencyRanges(ranges []FrequencyRange) string {
	var b strings.Builder
	for i, r := range ranges {
		fmt.Fprintf(&b, "  Motor %d: %.2f - %.2f Hz\n", i, r.MinHz, r.MaxHz)
	}
	return b.String()
}
