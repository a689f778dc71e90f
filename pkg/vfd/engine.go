// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// DigitalSink drives named digital output channels
type DigitalSink interface {
	SetLevel(channel string, level bool) error
}

// AnalogSink writes one output code per motor, applied together
type AnalogSink interface {
	SetCodes(codes []uint16) error
}

type discardSink struct{}

func (discardSink) SetLevel(string, bool) error { return nil }
func (discardSink) SetCodes([]uint16) error     { return nil }

// Config is the static configuration of an Engine
type Config struct {
	Motors          []MotorConfig
	WatchdogTimeout time.Duration
	MaxLineLength   int
	CodeMax         uint16
	Version         string
}

// Validate checks the configuration without modifying it. Zero WatchdogTimeout,
// MaxLineLength and CodeMax select the package defaults.
func (c *Config) Validate() error {
	if len(c.Motors) < 1 || len(c.Motors) > MaxMotors {
		return fmt.Errorf("%w: %d motors configured (want 1..%d)", ErrMotorCount, len(c.Motors), MaxMotors)
	}
	for i, m := range c.Motors {
		for _, v := range []float64{m.MinVoltage, m.MaxVoltage, m.Slope, m.Intercept, m.MinFrequencyHz, m.MaxFrequencyHz} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("motor %d: calibration values must be finite", i)
			}
		}
		if m.Slope == 0 {
			return fmt.Errorf("motor %d: slope must be non-zero", i)
		}
		if m.MinVoltage > m.MaxVoltage {
			return fmt.Errorf("motor %d: min voltage %g exceeds max voltage %g", i, m.MinVoltage, m.MaxVoltage)
		}
	}
	if c.WatchdogTimeout < 0 {
		return fmt.Errorf("watchdog timeout must not be negative")
	}
	if c.MaxLineLength != 0 && c.MaxLineLength < MinLineLength {
		return fmt.Errorf("max line length %d is below %d", c.MaxLineLength, MinLineLength)
	}
	return nil
}

// TickResult reports what a single Tick did
type TickResult struct {
	Response  string // response text without the line terminator
	Responded bool   // a line was dispatched and Response must be sent
	Command   Command
	Err       error // reason for an Invalid response

	WatchdogTripped   bool // the watchdog forced an all-stop on this tick
	WatchdogRecovered bool // a line arrived after a watchdog trip

	Outputs   []Output
	OutputErr error // combined sink failures
}

// Wire returns the newline-terminated response, or nil if nothing is to be sent
func (r TickResult) Wire() []byte {
	if !r.Responded {
		return nil
	}
	return append([]byte(r.Response), LineTerminator)
}

// Engine is the device side of the protocol. It is not safe for concurrent use:
// one goroutine owns it and calls Tick periodically with whatever bytes arrived.
type Engine struct {
	cfg        Config
	assembler  *LineAssembler
	model      *MotorStateModel
	watchdog   *Watchdog
	dispatcher *Dispatcher
	digital    DigitalSink
	analog     AnalogSink

	backlog        []byte
	backlogCap     int
	backlogDropped uint64

	stats Statistics
}

// NewEngine validates cfg and builds an engine with every motor stopped.
// Nil sinks discard their writes.
func NewEngine(cfg Config, digital DigitalSink, analog AnalogSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if cfg.WatchdogTimeout == 0 {
		cfg.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.CodeMax == 0 {
		cfg.CodeMax = DefaultCodeMax
	}
	if digital == nil {
		digital = discardSink{}
	}
	if analog == nil {
		analog = discardSink{}
	}

	model, err := NewMotorStateModel(len(cfg.Motors))
	if err != nil {
		return nil, err
	}
	motors := append([]MotorConfig(nil), cfg.Motors...)
	cfg.Motors = motors

	return &Engine{
		cfg:        cfg,
		assembler:  NewLineAssembler(cfg.MaxLineLength),
		model:      model,
		watchdog:   NewWatchdog(cfg.WatchdogTimeout),
		dispatcher: NewDispatcher(model, motors, cfg.Version),
		digital:    digital,
		analog:     analog,
		backlog:    make([]byte, 0, 4*cfg.MaxLineLength),
		backlogCap: 4 * cfg.MaxLineLength,
	}, nil
}

// Tick runs one scheduling step at monotonic time now:
//
//  1. assemble queued bytes, then in, until one line completes
//  2. dispatch that line, if any, and count it as liveness
//  3. check the watchdog
//  4. recompute and write every output from committed state
//
// Bytes after a completed line stay queued for the next tick.
func (e *Engine) Tick(in []byte, now time.Duration) TickResult {
	var res TickResult

	e.assemble(in)

	if line, ok := e.assembler.Take(); ok {
		res.WatchdogRecovered = e.watchdog.Feed(now)
		resp, cmd, err := e.dispatcher.Dispatch(line)
		e.stats.record(cmd, err)
		res.Response = resp
		res.Responded = true
		res.Command = cmd
		res.Err = err
	}

	if e.watchdog.Check(now, e.model) {
		res.WatchdogTripped = true
		e.stats.WatchdogTrips++
	}

	res.Outputs, res.OutputErr = e.writeOutputs()
	if res.OutputErr != nil {
		e.stats.OutputErrors++
	}
	e.stats.BytesDropped = e.assembler.Dropped() + e.backlogDropped
	return res
}

// assemble feeds the backlog and then in through the assembler until a line
// completes. Bytes after the completed line are queued for later ticks.
func (e *Engine) assemble(in []byte) {
	if len(e.backlog) > 0 {
		n, _ := e.assembler.Write(e.backlog)
		e.backlog = append(e.backlog[:0], e.backlog[n:]...)
		if e.assembler.Complete() {
			e.backlog = append(e.backlog, in...)
			e.trimBacklog()
			return
		}
	}
	n, _ := e.assembler.Write(in)
	e.backlog = append(e.backlog, in[n:]...)
	e.trimBacklog()
}

// trimBacklog bounds the backlog to backlogCap. Each queued line is first cut
// to its last maxLength bytes, which is all the assembler would keep of it.
// If that is not enough, whole lines are dropped oldest first, so a partial
// line is never joined to the next one.
func (e *Engine) trimBacklog() {
	if len(e.backlog) <= e.backlogCap {
		return
	}

	maxLength := e.assembler.Cap()
	kept := e.backlog[:0]
	rest := e.backlog
	for len(rest) > 0 {
		var seg []byte
		body := bytes.IndexByte(rest, LineTerminator)
		if body < 0 {
			body = len(rest)
			seg, rest = rest, nil
		} else {
			seg, rest = rest[:body+1], rest[body+1:]
		}
		if body > maxLength {
			e.backlogDropped += uint64(body - maxLength)
			seg = seg[body-maxLength:]
		}
		kept = append(kept, seg...)
	}

	drop := 0
	for len(kept)-drop > e.backlogCap {
		i := bytes.IndexByte(kept[drop:], LineTerminator)
		if i < 0 {
			break
		}
		drop += i + 1
	}
	e.backlogDropped += uint64(drop)
	e.backlog = append(e.backlog[:0], kept[drop:]...)
}

// writeOutputs maps committed state to outputs and writes every sink. A failing
// channel does not stop the others from being written.
func (e *Engine) writeOutputs() ([]Output, error) {
	outputs := MapOutputs(e.model.Snapshot(), e.cfg.Motors, e.cfg.CodeMax)

	var err error
	codes := make([]uint16, len(outputs))
	for i, o := range outputs {
		m := e.cfg.Motors[i]
		err = multierr.Append(err, e.digital.SetLevel(m.RunChannel, o.RunLevel))
		err = multierr.Append(err, e.digital.SetLevel(m.DirChannel, o.DirLevel))
		codes[i] = o.Code
	}
	err = multierr.Append(err, e.analog.SetCodes(codes))
	return outputs, err
}

// ForceStop halts every motor and writes the stopped outputs immediately
func (e *Engine) ForceStop() error {
	e.model.HaltAll()
	_, err := e.writeOutputs()
	return err
}

// Motors returns a snapshot of the committed motor state
func (e *Engine) Motors() []MotorState {
	return e.model.Snapshot()
}

// MotorConfigs returns the configured motors
func (e *Engine) MotorConfigs() []MotorConfig {
	return append([]MotorConfig(nil), e.cfg.Motors...)
}

// WatchdogTimeout returns the effective watchdog timeout
func (e *Engine) WatchdogTimeout() time.Duration {
	return e.watchdog.Timeout()
}

// WatchdogTripped reports whether the motors are currently held by the watchdog
func (e *Engine) WatchdogTripped() bool {
	return e.watchdog.Tripped()
}

// Statistics returns a copy of the engine counters
func (e *Engine) Statistics() Statistics {
	return e.stats
}
