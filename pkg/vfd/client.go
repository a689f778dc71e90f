// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultClientTimeout is how long a Client waits for a response line.
const DefaultClientTimeout = 500 * time.Millisecond

// Client is the host side of the protocol. It writes one command line at a time
// and waits for the single response line the device sends back.
//
// A background goroutine reads rw until it returns an error; close the underlying
// connection to stop it.
type Client struct {
	w       io.Writer
	timeout time.Duration

	mu     sync.Mutex // serializes request/response pairs
	lines  chan string
	closed chan struct{}
	err    error
}

// NewClient starts reading response lines from rw
func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	c := &Client{
		w:       rw,
		timeout: timeout,
		lines:   make(chan string, 16),
		closed:  make(chan struct{}),
	}
	go c.readLoop(rw)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	assembler := NewLineAssembler(4 * DefaultMaxLineLength)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if !assembler.Feed(b) {
				continue
			}
			line, _ := assembler.Take()
			select {
			case c.lines <- line:
			default:
				// nobody is listening; keep the newest lines
				select {
				case <-c.lines:
				default:
				}
				c.lines <- line
			}
		}
		if err != nil {
			c.err = err
			close(c.closed)
			return
		}
	}
}

// Lines returns the channel of received lines for callers that only listen
func (c *Client) Lines() <-chan string {
	return c.lines
}

// Done is closed when the read side of the connection has failed
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Err returns the error that stopped the reader, once Done is closed
func (c *Client) Err() error {
	select {
	case <-c.closed:
		return c.err
	default:
		return nil
	}
}

// Do sends one command line and returns the response line. Stale lines that
// arrived before the command was written are discarded.
func (c *Client) Do(command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

drain:
	for {
		select {
		case <-c.lines:
		default:
			break drain
		}
	}

	if _, err := io.WriteString(c.w, command+"\n"); err != nil {
		return "", fmt.Errorf("failed to write %q: %w", command, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case line := <-c.lines:
		return line, nil
	case <-c.closed:
		return "", fmt.Errorf("%w: %v", ErrConnectionClosed, c.err)
	case <-timer.C:
		return "", fmt.Errorf("%w: %s", ErrTimeout, command)
	}
}

// expect sends command and checks for a fixed response
func (c *Client) expect(command, want string) error {
	resp, err := c.Do(command)
	if err != nil {
		return err
	}
	switch resp {
	case want:
		return nil
	case RespInvalid:
		return fmt.Errorf("%w: %s", ErrRejected, command)
	}
	return fmt.Errorf("%w: %q to %s", ErrUnexpectedReply, resp, command)
}

// query sends command and returns its response, mapping Invalid to ErrRejected
func (c *Client) query(command string) (string, error) {
	resp, err := c.Do(command)
	if err != nil {
		return "", err
	}
	if resp == RespInvalid {
		return "", fmt.Errorf("%w: %s", ErrRejected, command)
	}
	return resp, nil
}

// Status checks that the device answers OK
func (c *Client) Status() error {
	return c.expect(CmdStatus, RespOK)
}

// Halt stops every motor
func (c *Client) Halt() error {
	return c.expect(CmdHalt, RespACK)
}

// SetMotors commits states on the device
func (c *Client) SetMotors(states []MotorState) error {
	return c.expect(SetMotorsCommand(states), RespACK)
}

// MotorSettings reads back the committed motor state. The motor count is taken
// from the response itself.
func (c *Client) MotorSettings() ([]MotorState, error) {
	resp, err := c.query(CmdMotorSettings)
	if err != nil {
		return nil, err
	}
	n := strings.IndexByte(resp, ' ')
	if n < 1 {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	states, err := DecodeMotorSettings(resp, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return states, nil
}

// Version returns the firmware version string
func (c *Client) Version() (string, error) {
	return c.query(CmdVersion)
}

// NumberMotors returns the configured motor count
func (c *Client) NumberMotors() (int, error) {
	resp, err := c.query(CmdNumberMotors)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(resp)
	if err != nil || n < 1 || n > MaxMotors {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	return n, nil
}

// MotorControlPins returns each motor's run/stop and direction channel names
func (c *Client) MotorControlPins() ([]PinPair, error) {
	resp, err := c.query(CmdMotorControlPins)
	if err != nil {
		return nil, err
	}
	return ParseMotorControlPins(resp)
}

// FrequencyConfig returns each motor's frequency range
func (c *Client) FrequencyConfig() ([]FrequencyRange, error) {
	resp, err := c.query(CmdFrequencyConfig)
	if err != nil {
		return nil, err
	}
	return ParseFrequencyConfig(resp)
}
