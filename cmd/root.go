// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Host request timeout
	requestTimeoutMs int
)

var rootCmd = &cobra.Command{
	Use:   "vfdctl",
	Short: "VFD motor controller line protocol tools",
	Long: `vfdctl - Device daemon and host tools for the VFD motor controller line protocol.

The serve command runs the controller: it reads newline-terminated commands from a
serial port, commits motor settings atomically, drives the run/direction pins and the
analog output converter, and stops every motor when the host goes silent.

The remaining commands are host-side tools that talk to a running controller.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the VFDCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&requestTimeoutMs, "request-timeout", 500, "Response timeout in milliseconds for host commands")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
