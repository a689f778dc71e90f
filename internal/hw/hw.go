// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hw connects the protocol engine's output sinks to Linux GPIO and SPI
// through periph.io, or to a logging simulator.
package hw

import (
	"github.com/pkg/errors"
	"periph.io/x/host/v3"
)

// Init loads the periph.io host drivers. It must run before any Open call.
func Init() error {
	_, err := host.Init()
	return errors.Wrap(err, "failed to initialize periph host drivers")
}
