// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"math"

	"github.com/Thermoquad/vfdctl/internal/mathx"
	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
// Zero values for optional settings are accepted; Normalize fills them in.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if !mathx.Between(len(cfg.Motors), 1, vfd.MaxMotors) {
		return fmt.Errorf("motors: %d configured, want 1..%d", len(cfg.Motors), vfd.MaxMotors)
	}

	// key = pin name, value = owner description
	pinOwner := make(map[string]string)

	for i, m := range cfg.Motors {
		label := fmt.Sprintf("motor %d", i)
		if m.Name != "" {
			label = fmt.Sprintf("motor %d (%s)", i, m.Name)
		}

		for _, f := range []struct {
			key string
			v   float64
		}{
			{"min_voltage", m.MinVoltage},
			{"max_voltage", m.MaxVoltage},
			{"slope", m.Slope},
			{"intercept", m.Intercept},
			{"min_frequency_hz", m.MinFrequencyHz},
			{"max_frequency_hz", m.MaxFrequencyHz},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return fmt.Errorf("%s: %s must be finite", label, f.key)
			}
		}

		if m.Slope == 0 {
			return fmt.Errorf("%s: slope must be non-zero", label)
		}
		if m.MinVoltage > m.MaxVoltage {
			return fmt.Errorf("%s: min_voltage %g exceeds max_voltage %g", label, m.MinVoltage, m.MaxVoltage)
		}
		if m.MinFrequencyHz > m.MaxFrequencyHz {
			return fmt.Errorf("%s: min_frequency_hz %g exceeds max_frequency_hz %g", label, m.MinFrequencyHz, m.MaxFrequencyHz)
		}

		for _, p := range []struct {
			key  string
			name string
		}{
			{"run_pin", m.RunPin},
			{"dir_pin", m.DirPin},
		} {
			if p.name == "" {
				return fmt.Errorf("%s: %s is required", label, p.key)
			}
			owner := label + " " + p.key
			if prev, exists := pinOwner[p.name]; exists {
				return fmt.Errorf("pin %q used by both %s and %s", p.name, prev, owner)
			}
			pinOwner[p.name] = owner
		}
	}

	if cfg.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	if cfg.TickMs < 0 {
		return fmt.Errorf("tick_ms must not be negative")
	}
	if cfg.MaxLineLength != 0 && cfg.MaxLineLength < vfd.MinLineLength {
		return fmt.Errorf("max_line_length %d is below %d", cfg.MaxLineLength, vfd.MinLineLength)
	}
	if cfg.TimeoutMs > 0 && cfg.TickMs > 0 && cfg.TickMs >= cfg.TimeoutMs {
		return fmt.Errorf("tick_ms %d must be shorter than timeout_ms %d", cfg.TickMs, cfg.TimeoutMs)
	}

	if !mathx.Between(cfg.DAC.CodeMax, 0, math.MaxUint16) {
		return fmt.Errorf("dac.code_max %d out of range", cfg.DAC.CodeMax)
	}
	if cfg.DAC.SpeedHz < 0 {
		return fmt.Errorf("dac.speed_hz must not be negative")
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must not be negative")
	}

	return nil
}
