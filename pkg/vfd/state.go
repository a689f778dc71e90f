// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"fmt"
	"sync"
	"time"
)

// MotorState is the commanded state of one motor slot
type MotorState struct {
	Running  bool    // true = start, false = stop
	Reversed bool    // true = reverse, false = forward
	Voltage  float64 // frequency-set voltage, clamped only at output
}

// Stopped is the state every motor is forced to by Halt and the watchdog.
var Stopped = MotorState{}

// MotorStateModel owns the committed state of all configured motor slots.
//
// Commit and HaltAll replace every slot under a single lock so readers never see
// a mix of old and new values.
type MotorStateModel struct {
	mu     sync.RWMutex
	states [MaxMotors]MotorState
	count  int
}

// NewMotorStateModel creates a model for count motors, all stopped
func NewMotorStateModel(count int) (*MotorStateModel, error) {
	if count < 1 || count > MaxMotors {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrMotorCount, count, MaxMotors)
	}
	return &MotorStateModel{count: count}, nil
}

// Count returns the number of configured motors
func (m *MotorStateModel) Count() int {
	return m.count
}

// Commit replaces the state of every motor. states must hold exactly Count entries.
func (m *MotorStateModel) Commit(states []MotorState) error {
	if len(states) != m.count {
		return fmt.Errorf("%w: commit of %d states for %d motors", ErrMotorCount, len(states), m.count)
	}
	m.mu.Lock()
	copy(m.states[:m.count], states)
	m.mu.Unlock()
	return nil
}

// HaltAll commits the stopped state to every motor
func (m *MotorStateModel) HaltAll() {
	m.mu.Lock()
	for i := 0; i < m.count; i++ {
		m.states[i] = Stopped
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the committed state
func (m *MotorStateModel) Snapshot() []MotorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MotorState, m.count)
	copy(out, m.states[:m.count])
	return out
}

// AllStopped reports whether every motor is in the stopped state
func (m *MotorStateModel) AllStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := 0; i < m.count; i++ {
		if m.states[i] != Stopped {
			return false
		}
	}
	return true
}

// Watchdog force-stops all motors when no line has arrived for longer than its
// timeout. Timestamps are durations since an arbitrary monotonic origin.
type Watchdog struct {
	timeout time.Duration
	last    time.Duration
	tripped bool
}

// NewWatchdog creates a watchdog whose liveness timestamp starts at zero
func NewWatchdog(timeout time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	return &Watchdog{timeout: timeout}
}

// Timeout returns the configured silence threshold
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Feed records liveness at now. It returns true if this ended a tripped period.
func (w *Watchdog) Feed(now time.Duration) bool {
	w.last = now
	recovered := w.tripped
	w.tripped = false
	return recovered
}

// Expired reports whether now is more than the timeout past the last Feed
func (w *Watchdog) Expired(now time.Duration) bool {
	return now-w.last > w.timeout
}

// Check halts every motor in model when the watchdog has expired. The halt is
// re-applied on every expired check. It returns true only on the check that first
// trips the watchdog.
func (w *Watchdog) Check(now time.Duration, model *MotorStateModel) bool {
	if !w.Expired(now) {
		return false
	}
	model.HaltAll()
	if w.tripped {
		return false
	}
	w.tripped = true
	return true
}

// Tripped reports whether the watchdog is currently holding the motors stopped
func (w *Watchdog) Tripped() bool {
	return w.tripped
}

// LastFeed returns the timestamp of the most recent Feed
func (w *Watchdog) LastFeed() time.Duration {
	return w.last
}
