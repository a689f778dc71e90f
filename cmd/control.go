// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	controlWatchdogMs int
	controlReadbackMs int
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the motors",
	Long: `Drive the controller's motors from an interactive terminal UI.

Features:
  - Motor count, control pins and frequency ranges read from the controller
  - Per-motor run/stop, direction and voltage editing
  - One-key Halt of every motor
  - Keep-alive Status? polling at half the watchdog timeout
  - Live MotorSettings? readback of the committed state
  - Link statistics and event logging
  - Automatic reconnection on connection loss

Keys:
  up/down (k/j)  select motor
  r              toggle run/stop
  d              toggle direction
  tab            edit voltage of the selected motor (enter/esc to finish)
  enter          send SetMotors with every motor
  h / space      Halt every motor
  q              quit (sends Halt first)

Edits are local until sent. The readback panel shows what the controller has
actually committed.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().IntVar(&controlWatchdogMs, "watchdog", 1000, "Controller watchdog timeout in milliseconds (keep-alive runs at half)")
	controlCmd.Flags().IntVar(&controlReadbackMs, "readback", 1000, "MotorSettings? readback interval in milliseconds")
}

// controlRequest is one command queued for the request loop
type controlRequest struct {
	kind   vfd.CommandKind
	states []vfd.MotorState // SetMotors only
}

// connectionManager handles connection lifecycle, reconnection, and the single
// goroutine that talks to the controller
type connectionManager struct {
	conn     Connection
	client   *vfd.Client
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
	requests chan controlRequest

	keepAlive time.Duration
	readback  time.Duration
}

func (cm *connectionManager) getClient() *vfd.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.client
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.client = vfd.NewClient(conn, requestTimeout())
	cm.connInfo = connInfo
}

// submit queues a request without blocking the UI. It reports false when the
// queue is full.
func (cm *connectionManager) submit(req controlRequest) bool {
	select {
	case cm.requests <- req:
		return true
	default:
		return false
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	keepAlive := time.Duration(controlWatchdogMs) * time.Millisecond / 2
	if keepAlive <= 0 {
		keepAlive = vfd.DefaultWatchdogTimeout / 2
	}

	// Create connection manager
	cm := &connectionManager{
		done:      make(chan struct{}),
		requests:  make(chan controlRequest, 16),
		keepAlive: keepAlive,
		readback:  time.Duration(max(controlReadbackMs, 50)) * time.Millisecond,
	}
	cm.setConn(conn, connInfo)

	// Create TUI model with connection manager
	m := initialControlModel(cm, connInfo)

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.requestLoop()

	// Run TUI
	_, err = p.Run()

	// Stop the motors before detaching
	if client := cm.getClient(); client != nil {
		client.Halt()
	}
	close(cm.done) // Signal goroutines to stop
	cm.getConn().Close()

	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// requestLoop is the only goroutine that sends commands. It serves queued
// requests, sends keep-alives and readbacks, and reconnects when the link drops.
func (cm *connectionManager) requestLoop() {
	for {
		cm.describeController()
		if !cm.serveConnection() {
			return // Shutdown requested
		}

		// Notify TUI about connection loss
		cm.p.Send(connectionLostMsg{})

		// Attempt to reconnect
		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// describeController reads the controller configuration for the motor panel
func (cm *connectionManager) describeController() {
	client := cm.getClient()
	var info controllerInfoMsg

	info.version, info.err = client.Version()
	if info.err == nil {
		info.motors, info.err = client.NumberMotors()
	}
	if info.err == nil {
		info.pins, info.err = client.MotorControlPins()
	}
	if info.err == nil {
		info.ranges, info.err = client.FrequencyConfig()
	}
	cm.p.Send(info)
}

// serveConnection runs requests against the current client until the
// connection closes. Returns true if the connection was lost, false if
// shutdown was requested.
func (cm *connectionManager) serveConnection() bool {
	client := cm.getClient()

	keepAlive := time.NewTicker(cm.keepAlive)
	defer keepAlive.Stop()
	readback := time.NewTicker(cm.readback)
	defer readback.Stop()

	for {
		var req controlRequest
		select {
		case <-cm.done:
			return false
		case <-client.Done():
			return true
		case req = <-cm.requests:
		case <-keepAlive.C:
			req = controlRequest{kind: vfd.KindStatus}
		case <-readback.C:
			req = controlRequest{kind: vfd.KindMotorSettings}
		}

		res := cm.execute(client, req)
		cm.p.Send(res)
		if errors.Is(res.err, vfd.ErrConnectionClosed) {
			select {
			case <-cm.done:
				return false
			default:
				return true
			}
		}
	}
}

// execute sends one request through client and times it
func (cm *connectionManager) execute(client *vfd.Client, req controlRequest) commandResultMsg {
	res := commandResultMsg{request: req}
	start := time.Now()
	switch req.kind {
	case vfd.KindStatus:
		res.err = client.Status()
	case vfd.KindHalt:
		res.err = client.Halt()
	case vfd.KindSetMotors:
		res.err = client.SetMotors(req.states)
	case vfd.KindMotorSettings:
		res.states, res.err = client.MotorSettings()
	default:
		res.err = fmt.Errorf("unsupported request %s", req.kind)
	}
	res.rtt = time.Since(start)
	return res
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	// Close old connection
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		// Attempt to reconnect
		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)

			// Commands queued while the link was down are stale
		drain:
			for {
				select {
				case <-cm.requests:
				default:
					break drain
				}
			}

			// Notify TUI about reconnection
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
