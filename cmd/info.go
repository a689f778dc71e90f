// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	"github.com/spf13/cobra"
)

var (
	infoRaw bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report the controller configuration and motor state",
	Long: `Query every read-only command the controller supports and print the answers.

Queries, in order:
  Version?           firmware version string
  NumberMotors?      configured motor count
  MotorControlPins?  run/stop and direction channel of each motor
  FrequencyConfig?   frequency range of each motor
  MotorSettings?     committed run/direction/voltage of each motor

None of these change motor state. Each one feeds the controller watchdog.

With --raw the response lines are printed unparsed.

Exit codes:
  0 - Every query answered
  1 - One or more queries failed
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoRaw, "raw", false, "Print raw response lines")
}

func runInfo(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	client, conn, connInfo, err := OpenClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("vfdctl - Controller Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	failed := 0
	for _, query := range vfd.QueryCommands() {
		var report string
		var err error
		if infoRaw {
			var resp string
			resp, err = client.Do(query)
			report = fmt.Sprintf("  %q\n", resp)
		} else {
			report, err = describeQuery(client, query)
		}

		fmt.Printf("%s\n", query)
		if err != nil {
			fmt.Printf("  FAILED: %v\n", err)
			failed++
			continue
		}
		fmt.Print(report)
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d queries failed\n", failed, len(vfd.QueryCommands()))
		os.Exit(1)
	}
	return nil
}

// describeQuery runs one read-only query through the typed client helper
// and formats its answer
func describeQuery(client *vfd.Client, query string) (string, error) {
	switch query {
	case vfd.CmdVersion:
		version, err := client.Version()
		return fmt.Sprintf("  %s\n", version), err
	case vfd.CmdNumberMotors:
		n, err := client.NumberMotors()
		return fmt.Sprintf("  %d\n", n), err
	case vfd.CmdMotorControlPins:
		pins, err := client.MotorControlPins()
		return vfd.FormatPinPairs(pins), err
	case vfd.CmdFrequencyConfig:
		ranges, err := client.FrequencyConfig()
		return vfd.FormatFrequencyRanges(ranges), err
	case vfd.CmdMotorSettings:
		states, err := client.MotorSettings()
		return vfd.FormatMotorStates(states), err
	}
	resp, err := client.Do(query)
	return fmt.Sprintf("  %s\n", resp), err
}
