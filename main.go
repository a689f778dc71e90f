// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// vfdctl - VFD motor controller line protocol
//
// Runs the motor controller daemon and the host tools that talk to it over
// a serial port or a WebSocket serial bridge.

package main

import (
	"os"

	"github.com/Thermoquad/vfdctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
