// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hw

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIOSink drives motor run/direction channels as GPIO outputs
type GPIOSink struct {
	pins map[string]gpio.PinOut
}

// NewGPIOSink wraps already opened pins keyed by channel name
func NewGPIOSink(pins map[string]gpio.PinOut) *GPIOSink {
	return &GPIOSink{pins: pins}
}

// OpenGPIOSink resolves every channel name through the periph.io pin registry
func OpenGPIOSink(names []string, log logrus.FieldLogger) (*GPIOSink, error) {
	pins := make(map[string]gpio.PinOut, len(names))
	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, errors.Errorf("gpio pin %q not found", name)
		}
		pins[name] = p
		log.WithField("pin", name).Debug("GPIO output registered")
	}
	log.WithField("pins", len(pins)).Info("GPIO sink ready")
	return NewGPIOSink(pins), nil
}

// SetLevel drives channel high (true) or low (false)
func (s *GPIOSink) SetLevel(channel string, level bool) error {
	p, ok := s.pins[channel]
	if !ok {
		return errors.Errorf("unknown gpio channel %q", channel)
	}
	return errors.Wrapf(p.Out(gpio.Level(level)), "failed to drive %s %s", channel, gpio.Level(level))
}
