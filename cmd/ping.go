// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips with Status? requests",
	Long: `Send Status? requests to the controller and wait for each OK.

Every answered request also feeds the controller watchdog, so a ping run with a
short interval keeps running motors alive.

This is useful for verifying:
  - The serial port or WebSocket bridge is passing bytes both ways
  - HTTP Basic authentication works
  - The controller tick loop is running

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "interval", 100, "Delay between pings in milliseconds")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	client, conn, connInfo, err := OpenClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("vfdctl - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v per ping\n", requestTimeout())
	fmt.Printf("Count: %d pings\n\n", pingCount)

	stats := vfd.NewLinkStatistics()

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		err := client.Status()
		rtt := time.Since(start)
		stats.Update(rtt, err)

		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			fmt.Printf("OK, rtt=%v\n", rtt.Round(time.Microsecond))
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	// Summary
	failCount := stats.Requests - stats.ValidResponses
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d OK received, %.0f%% loss\n",
		stats.Requests, stats.ValidResponses, float64(failCount)/float64(max(stats.Requests, 1))*100)
	if stats.ValidResponses > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			stats.MinRTT.Round(time.Microsecond),
			stats.AverageRTT().Round(time.Microsecond),
			stats.MaxRTT.Round(time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
