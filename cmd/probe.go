// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for the controller to answer Status?",
	Long: `Send Status? repeatedly until the controller answers OK or the timeout expires.

Any other answer, or no answer at all, is retried. A controller that just came
out of reset, or a line that starts mid-way through a previous command, is
resynchronised by the first newline.

Exit codes:
  0 - Controller answered OK before timeout
  1 - Timeout reached without an OK
  2 - Connection error

Useful for testing connectivity to a controller or a WebSocket serial bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for OK")
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	client, conn, connInfo, err := OpenClient()
	if err != nil {
		pterm.Error.Printf("Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	pterm.Info.Printf("vfdctl - Probe\n")
	pterm.Info.Printf("Connection: %s\n", connInfo)
	pterm.Info.Printf("Timeout: %d seconds\n", probeTimeout)

	deadline := time.Now().Add(time.Duration(probeTimeout) * time.Second)
	attempts := 0
	for time.Now().Before(deadline) {
		attempts++
		start := time.Now()
		err := client.Status()
		if err == nil {
			pterm.Success.Printf("Controller answered OK (attempt %d, rtt=%v)\n",
				attempts, time.Since(start).Round(time.Millisecond))
			os.Exit(0)
		}
		if errors.Is(err, vfd.ErrConnectionClosed) {
			pterm.Error.Printf("Read error: %v\n", err)
			os.Exit(2)
		}
		pterm.Warning.Printf("Attempt %d: %v\n", attempts, err)
	}

	pterm.Error.Printf("TIMEOUT: No OK received within %d seconds (%d attempts)\n", probeTimeout, attempts)
	os.Exit(1)
	return nil
}
