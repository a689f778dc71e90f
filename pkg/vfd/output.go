// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"github.com/Thermoquad/vfdctl/internal/mathx"
)

// MotorConfig is the static wiring and calibration of one motor slot
type MotorConfig struct {
	Name string

	RunChannel   string // digital run/stop output
	DirChannel   string // digital direction output
	RunActiveLow bool
	DirActiveLow bool

	MinVoltage float64
	MaxVoltage float64

	// Slope and Intercept calibrate voltage = Slope*code + Intercept
	Slope     float64
	Intercept float64

	MinFrequencyHz float64
	MaxFrequencyHz float64
}

// Output is the hardware image of one motor for a single tick
type Output struct {
	RunLevel bool   // electrical level of the run/stop channel
	DirLevel bool   // electrical level of the direction channel
	Code     uint16 // analog output code
}

// VoltageToCode clamps v into the motor's voltage range and converts it to an
// output code in [0, codeMax]. The rounding happens in int64 before the final
// clamp so out-of-range calibrations saturate instead of wrapping.
func VoltageToCode(v float64, cfg MotorConfig, codeMax uint16) uint16 {
	if cfg.Slope == 0 {
		return 0
	}
	clamped := mathx.Clamp(v, cfg.MinVoltage, cfg.MaxVoltage)
	raw := mathx.RoundInt64((clamped - cfg.Intercept) / cfg.Slope)
	return uint16(mathx.Clamp(raw, 0, int64(codeMax)))
}

// MapOutput derives one motor's outputs from its committed state
func MapOutput(s MotorState, cfg MotorConfig, codeMax uint16) Output {
	return Output{
		RunLevel: s.Running != cfg.RunActiveLow,
		DirLevel: s.Reversed != cfg.DirActiveLow,
		Code:     VoltageToCode(s.Voltage, cfg, codeMax),
	}
}

// MapOutputs maps every motor. states and motors must be the same length.
func MapOutputs(states []MotorState, motors []MotorConfig, codeMax uint16) []Output {
	out := make([]Output, len(states))
	for i := range states {
		out[i] = MapOutput(states[i], motors[i], codeMax)
	}
	return out
}
