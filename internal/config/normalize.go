// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import "github.com/Thermoquad/vfdctl/pkg/vfd"

// Normalize applies defaults to unset optional settings.
// It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.TimeoutMs == 0 {
		cfg.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.TickMs == 0 {
		cfg.TickMs = DefaultTickMs
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = vfd.DefaultMaxLineLength
	}
	if cfg.DAC.CodeMax == 0 {
		cfg.DAC.CodeMax = vfd.DefaultCodeMax
	}
	if cfg.DAC.Port == "" {
		cfg.DAC.Port = DefaultDACPort
	}
	if cfg.DAC.SpeedHz == 0 {
		cfg.DAC.SpeedHz = DefaultDACSpeed
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = DefaultBaud
	}
	if cfg.Version == "" {
		cfg.Version = vfd.FirmwareVersion
	}

	for i := range cfg.Motors {
		m := &cfg.Motors[i]
		if m.Name == "" {
			m.Name = "motor" + string(rune('0'+i))
		}
	}
}
