// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every line received from the controller",
	Long: `Continuously display the lines arriving on the connection, one per row,
with a receive timestamp.

Nothing is sent, so this is useful as a passive tap on a link driven by
another host, or on a WebSocket bridge shared with a control session.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	client, conn, connInfo, err := OpenClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("vfdctl - Raw Line Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		select {
		case line := <-client.Lines():
			fmt.Printf("[%s] %q\n", time.Now().Format("15:04:05.000"), line)
		case <-client.Done():
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			log.Printf("Connection closed: %v", client.Err())
			return nil
		}
	}
}
