// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

const sampleYAML = `
timeout_ms: 500
motors:
  - name: conveyor
    run_pin: GPIO17
    dir_pin: GPIO27
    run_active_low: true
    min_voltage: 0
    max_voltage: 10
    slope: 0.00244200
    intercept: 0
    min_frequency_hz: 0
    max_frequency_hz: 60
  - name: mixer
    run_pin: GPIO22
    dir_pin: GPIO23
    max_voltage: 5
    slope: 0.001221
dac:
  port: SPI0.1
serial:
  port: /dev/ttyAMA0
`

// helper to build a motor quickly
func motor(run, dir string) MotorConfig {
	return MotorConfig{
		RunPin:     run,
		DirPin:     dir,
		MaxVoltage: 10,
		Slope:      0.01,
	}
}

// ============================================================
// Parse / Load Tests
// ============================================================

func TestParse_Sample(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Motors) != 2 {
		t.Fatalf("motors = %d", len(cfg.Motors))
	}
	if cfg.Motors[0].Name != "conveyor" || !cfg.Motors[0].RunActiveLow || cfg.Motors[0].MaxFrequencyHz != 60 {
		t.Errorf("motor 0 = %+v", cfg.Motors[0])
	}
	if cfg.DAC.Port != "SPI0.1" || cfg.Serial.Port != "/dev/ttyAMA0" {
		t.Errorf("dac/serial = %+v / %+v", cfg.DAC, cfg.Serial)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("motors: []\nwatchdog: 5\n"))
	if err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vfd.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.TimeoutMs != 500 || cfg.TickMs != DefaultTickMs || cfg.Serial.Baud != DefaultBaud {
		t.Errorf("normalized = %+v", cfg)
	}

	dev := cfg.DeviceConfig()
	if dev.WatchdogTimeout != 500*time.Millisecond {
		t.Errorf("WatchdogTimeout = %v", dev.WatchdogTimeout)
	}
	if dev.CodeMax != vfd.DefaultCodeMax || dev.MaxLineLength != vfd.DefaultMaxLineLength {
		t.Errorf("CodeMax/MaxLineLength = %d/%d", dev.CodeMax, dev.MaxLineLength)
	}
	if dev.Motors[1].RunChannel != "GPIO22" || dev.Motors[1].Slope != 0.001221 {
		t.Errorf("motor 1 = %+v", dev.Motors[1])
	}
	if err := dev.Validate(); err != nil {
		t.Errorf("device config invalid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

// ============================================================
// Validate Tests
// ============================================================

func TestValidate_Good(t *testing.T) {
	cfg := &Config{Motors: []MotorConfig{motor("GPIO1", "GPIO2"), motor("GPIO3", "GPIO4")}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeoutMs != 0 {
		t.Error("Validate must not mutate the config")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no motors", func(c *Config) { c.Motors = nil }, "motors"},
		{"too many motors", func(c *Config) {
			c.Motors = []MotorConfig{motor("a", "b"), motor("c", "d"), motor("e", "f"), motor("g", "h"), motor("i", "j")}
		}, "motors"},
		{"zero slope", func(c *Config) { c.Motors[0].Slope = 0 }, "slope"},
		{"nan intercept", func(c *Config) { c.Motors[0].Intercept = math.NaN() }, "finite"},
		{"inverted voltage range", func(c *Config) { c.Motors[0].MinVoltage = 20 }, "min_voltage"},
		{"inverted frequency range", func(c *Config) { c.Motors[0].MinFrequencyHz = 100 }, "min_frequency_hz"},
		{"missing run pin", func(c *Config) { c.Motors[1].RunPin = "" }, "run_pin"},
		{"shared pin", func(c *Config) { c.Motors[1].DirPin = "GPIO1" }, "GPIO1"},
		{"same pin for run and dir", func(c *Config) { c.Motors[0].DirPin = "GPIO1" }, "GPIO1"},
		{"negative timeout", func(c *Config) { c.TimeoutMs = -1 }, "timeout_ms"},
		{"short lines", func(c *Config) { c.MaxLineLength = 8 }, "max_line_length"},
		{"tick not shorter than timeout", func(c *Config) { c.TimeoutMs = 10; c.TickMs = 10 }, "tick_ms"},
		{"code max too large", func(c *Config) { c.DAC.CodeMax = 70000 }, "code_max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Motors: []MotorConfig{motor("GPIO1", "GPIO2"), motor("GPIO3", "GPIO4")}}
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{Motors: []MotorConfig{motor("GPIO1", "GPIO2")}}
	Normalize(cfg)

	if cfg.TimeoutMs != DefaultTimeoutMs || cfg.TickMs != DefaultTickMs {
		t.Errorf("timing defaults = %d/%d", cfg.TimeoutMs, cfg.TickMs)
	}
	if cfg.MaxLineLength != vfd.DefaultMaxLineLength || cfg.DAC.CodeMax != vfd.DefaultCodeMax {
		t.Errorf("limits = %d/%d", cfg.MaxLineLength, cfg.DAC.CodeMax)
	}
	if cfg.Motors[0].Name != "motor0" {
		t.Errorf("default name = %q", cfg.Motors[0].Name)
	}
	if cfg.TickInterval() != DefaultTickMs*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval())
	}

	Normalize(nil)
}
