// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	pollInterval  int
	useTUI        bool
)

var linkStatsCmd = &cobra.Command{
	Use:   "link_stats",
	Short: "Poll MotorSettings? and track link errors",
	Long: `Repeatedly read back the committed motor state and track how the link behaves.

Every poll sends MotorSettings? and validates the answer:
  - Invalid answers (the controller rejected the line)
  - Malformed answers (wrong field layout or an unparsable voltage)
  - Timeouts (no answer within --request-timeout)
  - Round-trip time and response/error rates

By default, only failures are displayed. Use --show-all to display every readback.

Polling also feeds the controller watchdog, so running motors keep running
while this command is attached.`,
	RunE: runLinkStats,
}

func init() {
	rootCmd.AddCommand(linkStatsCmd)
	linkStatsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show every readback (not just errors)")
	linkStatsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	linkStatsCmd.Flags().IntVar(&pollInterval, "poll-interval", 200, "Poll interval (milliseconds)")
	linkStatsCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// pollResult is the outcome of one MotorSettings? round trip
type pollResult struct {
	at     time.Time
	rtt    time.Duration
	states []vfd.MotorState
	err    error
}

// pollLoop sends MotorSettings? every interval and hands each result to emit
// until the connection closes
func pollLoop(client *vfd.Client, interval time.Duration, emit func(pollResult)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		states, err := client.MotorSettings()
		emit(pollResult{at: start, rtt: time.Since(start), states: states, err: err})
		if errors.Is(err, vfd.ErrConnectionClosed) {
			return
		}

		select {
		case <-ticker.C:
		case <-client.Done():
			emit(pollResult{at: time.Now(), err: fmt.Errorf("%w: %v", vfd.ErrConnectionClosed, client.Err())})
			return
		}
	}
}

func runLinkStats(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	client, conn, connInfo, err := OpenClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	interval := time.Duration(pollInterval) * time.Millisecond
	if useTUI {
		return runTUIMode(client, connInfo, interval)
	}
	return runTextMode(client, connInfo, interval)
}

// printPollError prints a failed poll in highlighted format
func printPollError(r pollResult) {
	timestamp := r.at.Format("15:04:05.000")
	switch {
	case errors.Is(r.err, vfd.ErrTimeout):
		fmt.Printf("[%s] \033[1;33mTIMEOUT:\033[0m no answer within %v\n\n", timestamp, requestTimeout())
	case errors.Is(r.err, vfd.ErrRejected):
		fmt.Printf("[%s] \033[1;31mREJECTED:\033[0m controller answered Invalid\n\n", timestamp)
	default:
		fmt.Printf("[%s] \033[1;31mMALFORMED:\033[0m %v\n", timestamp, r.err)
		fmt.Printf("  >>> RESPONSE REJECTED <<<\n\n")
	}
}

// printReadback prints a successful poll
func printReadback(r pollResult) {
	timestamp := r.at.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;32mMOTOR_SETTINGS:\033[0m rtt=%v\n", timestamp, r.rtt.Round(time.Microsecond))
	fmt.Print(vfd.FormatMotorStates(r.states))
	fmt.Println()
}

// runTUIMode runs link statistics in TUI mode
func runTUIMode(client *vfd.Client, connInfo string, interval time.Duration) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go pollLoop(client, interval, func(r pollResult) {
		p.Send(pollMsg(r))
	})

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// runTextMode runs link statistics in text mode
func runTextMode(client *vfd.Client, connInfo string, interval time.Duration) error {
	fmt.Printf("vfdctl - Link Statistics\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Poll interval: %v\n", interval)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All readbacks\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := vfd.NewLinkStatistics()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking poll results
	results := make(chan pollResult, 10)
	go func() {
		pollLoop(client, interval, func(r pollResult) { results <- r })
		close(results)
	}()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				return nil
			}
			if errors.Is(r.err, vfd.ErrConnectionClosed) {
				fmt.Printf("Connection closed: %v\n", r.err)
				continue
			}

			stats.Update(r.rtt, r.err)
			if r.err != nil {
				printPollError(r)
			} else if showAll {
				printReadback(r)
			}

		case <-statsTicker.C:
			// Print statistics
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
