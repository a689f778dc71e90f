// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the device configuration file used by vfdctl serve.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

// Defaults applied by Normalize
const (
	DefaultTimeoutMs = 1000
	DefaultTickMs    = 5
	DefaultBaud      = 115200
	DefaultDACPort   = "/dev/spidev0.0"
	DefaultDACSpeed  = 1000000
)

type Config struct {
	Motors        []MotorConfig `yaml:"motors"`
	TimeoutMs     int           `yaml:"timeout_ms"`
	MaxLineLength int           `yaml:"max_line_length"`
	TickMs        int           `yaml:"tick_ms"`
	Version       string        `yaml:"version"`
	DAC           DACConfig     `yaml:"dac"`
	Serial        SerialConfig  `yaml:"serial"`
}

// ---- MOTOR ----

type MotorConfig struct {
	Name         string `yaml:"name"`
	RunPin       string `yaml:"run_pin"`
	DirPin       string `yaml:"dir_pin"`
	RunActiveLow bool   `yaml:"run_active_low"`
	DirActiveLow bool   `yaml:"dir_active_low"`

	MinVoltage float64 `yaml:"min_voltage"`
	MaxVoltage float64 `yaml:"max_voltage"`
	Slope      float64 `yaml:"slope"`
	Intercept  float64 `yaml:"intercept"`

	MinFrequencyHz float64 `yaml:"min_frequency_hz"`
	MaxFrequencyHz float64 `yaml:"max_frequency_hz"`
}

// ---- DAC ----

type DACConfig struct {
	Port    string `yaml:"port"`
	SpeedHz int64  `yaml:"speed_hz"`
	CodeMax int    `yaml:"code_max"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Load reads and parses the YAML file at path. The result is neither validated
// nor normalized.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LoadFile is Load, Validate and Normalize in one step
func LoadFile(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	Normalize(cfg)
	return cfg, nil
}

// TickInterval returns the scheduling tick period
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// DeviceConfig converts a normalized config into the engine configuration
func (c *Config) DeviceConfig() vfd.Config {
	motors := make([]vfd.MotorConfig, len(c.Motors))
	for i, m := range c.Motors {
		motors[i] = vfd.MotorConfig{
			Name:           m.Name,
			RunChannel:     m.RunPin,
			DirChannel:     m.DirPin,
			RunActiveLow:   m.RunActiveLow,
			DirActiveLow:   m.DirActiveLow,
			MinVoltage:     m.MinVoltage,
			MaxVoltage:     m.MaxVoltage,
			Slope:          m.Slope,
			Intercept:      m.Intercept,
			MinFrequencyHz: m.MinFrequencyHz,
			MaxFrequencyHz: m.MaxFrequencyHz,
		}
	}
	return vfd.Config{
		Motors:          motors,
		WatchdogTimeout: time.Duration(c.TimeoutMs) * time.Millisecond,
		MaxLineLength:   c.MaxLineLength,
		CodeMax:         uint16(c.DAC.CodeMax),
		Version:         c.Version,
	}
}
