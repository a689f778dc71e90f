// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <command line>",
	Short: "Send one raw command line and print the response",
	Long: `Send a single command line to the controller and print the line it answers.

The arguments are joined with single spaces and terminated with a newline, so
quoting is optional:

  vfdctl send --port /dev/ttyUSB0 Status?
  vfdctl send --port /dev/ttyUSB0 SetMotors: AO FR 2.13 -1e-1
  vfdctl send --port /dev/ttyUSB0 "MotorSettings?"

Exit codes:
  0 - The controller answered with anything but Invalid
  1 - The controller answered Invalid, or did not answer
  2 - Connection error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	client, conn, _, err := OpenClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	line := strings.Join(args, " ")
	start := time.Now()
	resp, err := client.Do(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", resp)
	fmt.Fprintf(os.Stderr, "(%s, rtt=%v)\n",
		vfd.FormatCommandKind(vfd.ClassifyCommand(line).Kind), time.Since(start).Round(time.Microsecond))

	if resp == vfd.RespInvalid {
		os.Exit(1)
	}
	return nil
}
