// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Fake Sinks
// ============================================================

type fakeDigital struct {
	levels map[string]bool
	fail   map[string]bool
	writes int
}

func newFakeDigital() *fakeDigital {
	return &fakeDigital{levels: map[string]bool{}, fail: map[string]bool{}}
}

func (f *fakeDigital) SetLevel(channel string, level bool) error {
	f.writes++
	if f.fail[channel] {
		return errors.New("pin " + channel + " stuck")
	}
	f.levels[channel] = level
	return nil
}

type fakeAnalog struct {
	codes  []uint16
	writes int
}

func (f *fakeAnalog) SetCodes(codes []uint16) error {
	f.writes++
	f.codes = append(f.codes[:0], codes...)
	return nil
}

func newTestEngine(t *testing.T, n int, timeout time.Duration) (*Engine, *fakeDigital, *fakeAnalog) {
	t.Helper()
	digital, analog := newFakeDigital(), &fakeAnalog{}
	e, err := NewEngine(Config{Motors: testMotors(n), WatchdogTimeout: timeout}, digital, analog)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, digital, analog
}

// ============================================================
// Engine Tests
// ============================================================

func TestEngine_StatusRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t, 2, time.Second)

	res := e.Tick([]byte("Stat"), 0)
	if res.Responded {
		t.Fatal("partial line produced a response")
	}

	res = e.Tick([]byte("us?\n"), time.Millisecond)
	if !res.Responded || res.Response != RespOK {
		t.Fatalf("got %+v, want OK", res)
	}
	if string(res.Wire()) != "OK\n" {
		t.Errorf("Wire() = %q", res.Wire())
	}
	if res.Command.Kind != KindStatus {
		t.Errorf("Command.Kind = %v", res.Command.Kind)
	}
}

func TestEngine_OneCommandPerTick(t *testing.T) {
	e, _, _ := newTestEngine(t, 2, time.Second)

	res := e.Tick([]byte("Status?\nHalt\nBogus\n"), 0)
	if res.Response != RespOK {
		t.Fatalf("first tick = %q, want OK", res.Response)
	}
	res = e.Tick(nil, 1)
	if res.Response != RespACK {
		t.Fatalf("second tick = %q, want ACK", res.Response)
	}
	res = e.Tick(nil, 2)
	if res.Response != RespInvalid || !errors.Is(res.Err, ErrMalformedCommand) {
		t.Fatalf("third tick = %q (%v), want Invalid", res.Response, res.Err)
	}
	res = e.Tick(nil, 3)
	if res.Responded {
		t.Fatalf("fourth tick responded %q", res.Response)
	}

	stats := e.Statistics()
	if stats.LinesReceived != 3 || stats.Accepted != 2 || stats.Invalid != 1 {
		t.Errorf("statistics = %s", stats.String())
	}
	if stats.Count(KindHalt) != 1 || stats.Count(KindUnknown) != 1 {
		t.Errorf("per-kind counts = %v", stats.PerKind)
	}
}

func TestEngine_NoResponseWithoutLine(t *testing.T) {
	e, _, _ := newTestEngine(t, 1, time.Second)
	if res := e.Tick(nil, 0); res.Responded || res.Wire() != nil {
		t.Errorf("empty tick responded: %+v", res)
	}
}

func TestEngine_OutputsFollowState(t *testing.T) {
	e, digital, analog := newTestEngine(t, 2, time.Second)

	res := e.Tick([]byte("SetMotors: AO FR 2.13 -1e-1\n"), 0)
	if res.Response != RespACK {
		t.Fatalf("SetMotors answered %q (%v)", res.Response, res.Err)
	}

	if !digital.levels["GPIOa"] || digital.levels["GPIOA"] {
		t.Errorf("motor 0 levels: run=%v dir=%v", digital.levels["GPIOa"], digital.levels["GPIOA"])
	}
	if digital.levels["GPIOb"] || !digital.levels["GPIOB"] {
		t.Errorf("motor 1 levels: run=%v dir=%v", digital.levels["GPIOb"], digital.levels["GPIOB"])
	}
	if len(analog.codes) != 2 || analog.codes[0] != 213 || analog.codes[1] != 0 {
		t.Errorf("codes = %v, want [213 0]", analog.codes)
	}

	// outputs are rewritten every tick, not only on change
	writes := analog.writes
	e.Tick(nil, 1)
	if analog.writes != writes+1 {
		t.Error("outputs not recomputed on an idle tick")
	}
}

func TestEngine_WatchdogForcesStop(t *testing.T) {
	timeout := 100 * time.Millisecond
	e, digital, analog := newTestEngine(t, 2, timeout)

	e.Tick([]byte("SetMotors: AA RR 5 5\n"), 0)
	if e.Motors()[0] != (MotorState{Running: true, Reversed: true, Voltage: 5}) {
		t.Fatalf("commit failed: %+v", e.Motors())
	}

	if res := e.Tick(nil, timeout); res.WatchdogTripped {
		t.Fatal("watchdog tripped at exactly the timeout")
	}

	res := e.Tick(nil, timeout+time.Millisecond)
	if !res.WatchdogTripped {
		t.Fatal("watchdog did not trip")
	}
	for i, s := range e.Motors() {
		if s != Stopped {
			t.Errorf("motor %d = %+v after trip", i, s)
		}
	}
	if digital.levels["GPIOa"] || digital.levels["GPIOA"] || analog.codes[0] != 0 {
		t.Error("outputs not stopped on the tripping tick")
	}
	if !e.WatchdogTripped() {
		t.Error("WatchdogTripped() = false")
	}

	if res := e.Tick(nil, 10*timeout); res.WatchdogTripped {
		t.Error("trip reported twice")
	}

	// any line counts as liveness, even an invalid one
	res = e.Tick([]byte("garbage\n"), 11*timeout)
	if !res.WatchdogRecovered || res.Response != RespInvalid {
		t.Errorf("recovery tick = %+v", res)
	}
	if e.Statistics().WatchdogTrips != 1 {
		t.Errorf("WatchdogTrips = %d", e.Statistics().WatchdogTrips)
	}
}

func TestEngine_InvalidLineFeedsWatchdog(t *testing.T) {
	timeout := 100 * time.Millisecond
	e, _, _ := newTestEngine(t, 1, timeout)

	e.Tick([]byte("SetMotors: A F 1\n"), 0)
	e.Tick([]byte("nonsense\n"), 90*time.Millisecond)
	if res := e.Tick(nil, 150*time.Millisecond); res.WatchdogTripped {
		t.Error("watchdog tripped despite an invalid line inside the timeout")
	}
	if !e.Motors()[0].Running {
		t.Error("motor stopped")
	}
}

func TestEngine_OutputErrorsDoNotStopTick(t *testing.T) {
	e, digital, analog := newTestEngine(t, 2, time.Second)
	digital.fail["GPIOa"] = true

	res := e.Tick([]byte("SetMotors: AA FF 1 1\n"), 0)
	if res.Response != RespACK {
		t.Fatalf("response %q", res.Response)
	}
	if res.OutputErr == nil {
		t.Fatal("expected an output error")
	}
	if !digital.levels["GPIOb"] {
		t.Error("healthy channel was not written")
	}
	if analog.writes != 1 {
		t.Error("analog sink skipped after digital failure")
	}
	if e.Statistics().OutputErrors != 1 {
		t.Errorf("OutputErrors = %d", e.Statistics().OutputErrors)
	}
}

func TestEngine_ForceStop(t *testing.T) {
	e, digital, _ := newTestEngine(t, 1, time.Second)
	e.Tick([]byte("SetMotors: A F 1\n"), 0)
	if err := e.ForceStop(); err != nil {
		t.Fatalf("ForceStop: %v", err)
	}
	if e.Motors()[0] != Stopped || digital.levels["GPIOa"] {
		t.Error("ForceStop left the motor running")
	}
}

func TestEngine_BacklogBounded(t *testing.T) {
	e, _, _ := newTestEngine(t, 1, time.Second)
	flood := make([]byte, 0, 10000)
	for len(flood) < 10000 {
		flood = append(flood, "Status?\n"...)
	}
	e.Tick(flood, 0)
	if len(e.backlog) > e.backlogCap {
		t.Errorf("backlog grew to %d", len(e.backlog))
	}
	if e.Statistics().BytesDropped == 0 {
		t.Error("dropped bytes not counted")
	}

	// whole lines were dropped, so every queued line still frames correctly
	for i := 0; len(e.backlog) > 0; i++ {
		res := e.Tick(nil, 0)
		if !res.Responded || res.Response != RespOK {
			t.Fatalf("queued line %d: got %+v", i, res)
		}
	}
	if res := e.Tick([]byte("Status?\n"), 0); res.Response != RespOK {
		t.Errorf("after drain: got %+v", res)
	}
}

func newShortLineEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Motors: testMotors(1), MaxLineLength: MinLineLength, WatchdogTimeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngine_OversizedLineKeepsWindow(t *testing.T) {
	tests := []struct {
		name  string
		ticks []string
		want  []string // response per tick, "" for none
	}{
		{
			name:  "terminated in one tick",
			ticks: []string{strings.Repeat("x", 100) + "Status?\n", "Status?\n"},
			want:  []string{RespInvalid, RespOK},
		},
		{
			name:  "unterminated burst then newline",
			ticks: []string{strings.Repeat("x", 100), "\n", "Status?\n"},
			want:  []string{"", RespInvalid, RespOK},
		},
		{
			name:  "window ends in a command",
			ticks: []string{strings.Repeat("x", 100) + "\n" + strings.Repeat("y", 40), "Status?\n", "Status?\n"},
			want:  []string{RespInvalid, RespInvalid, RespOK},
		},
		{
			name:  "oversized line queued behind another",
			ticks: []string{"Halt\n" + strings.Repeat("x", 1000) + "\nStatus?\n", "", ""},
			want:  []string{RespACK, RespInvalid, RespOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newShortLineEngine(t)
			for i, in := range tt.ticks {
				res := e.Tick([]byte(in), 0)
				if tt.want[i] == "" {
					if res.Responded {
						t.Fatalf("tick %d: unexpected response %q", i, res.Response)
					}
					continue
				}
				if !res.Responded || res.Response != tt.want[i] {
					t.Fatalf("tick %d: got %q (responded=%v err=%v), want %q",
						i, res.Response, res.Responded, res.Err, tt.want[i])
				}
				if res.Response == RespInvalid && len(res.Command.Line) != MinLineLength {
					t.Errorf("tick %d: line %q is not the %d byte window", i, res.Command.Line, MinLineLength)
				}
			}
		})
	}
}

func TestEngine_OversizedLineWindowContent(t *testing.T) {
	e := newShortLineEngine(t)

	res := e.Tick([]byte(strings.Repeat("x", 100)+"Status?\n"), 0)
	if !res.Responded || !errors.Is(res.Err, ErrMalformedCommand) {
		t.Fatalf("got %+v", res)
	}
	if want := "xxxxxxxxxStatus?"; res.Command.Line != want {
		t.Errorf("line = %q, want %q", res.Command.Line, want)
	}
	if len(e.backlog) != 0 {
		t.Errorf("backlog holds %q", e.backlog)
	}
	if e.Statistics().BytesDropped != 100+7+1-MinLineLength-1 {
		t.Errorf("BytesDropped = %d", e.Statistics().BytesDropped)
	}
}

func TestEngine_StatisticsSummary(t *testing.T) {
	e, _, _ := newTestEngine(t, 1, time.Second)
	e.Tick([]byte("Status?\n"), 0)
	e.Tick([]byte("Bogus\n"), 0)

	if got := e.Statistics().Count(KindStatus); got != 1 {
		t.Errorf("Count(KindStatus) = %d, want 1", got)
	}
	if got := e.Statistics().Count(numCommandKinds); got != 0 {
		t.Errorf("Count(out of range) = %d, want 0", got)
	}
	if got := e.Statistics().String(); !strings.HasPrefix(got, "lines=2 accepted=1 invalid=1") {
		t.Errorf("String() = %q", got)
	}
}

func TestEngine_NilSinks(t *testing.T) {
	e, err := NewEngine(Config{Motors: testMotors(1)}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if res := e.Tick([]byte("Halt\n"), 0); res.Response != RespACK || res.OutputErr != nil {
		t.Errorf("got %+v", res)
	}
	if e.WatchdogTimeout() != DefaultWatchdogTimeout {
		t.Errorf("WatchdogTimeout() = %v", e.WatchdogTimeout())
	}
}

func TestConfig_Validate(t *testing.T) {
	good := func() Config { return Config{Motors: testMotors(2)} }

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no motors", func(c *Config) { c.Motors = nil }},
		{"five motors", func(c *Config) { c.Motors = testMotors(5) }},
		{"zero slope", func(c *Config) { c.Motors[0].Slope = 0 }},
		{"inverted range", func(c *Config) { c.Motors[1].MinVoltage = 11 }},
		{"short lines", func(c *Config) { c.MaxLineLength = 4 }},
		{"negative timeout", func(c *Config) { c.WatchdogTimeout = -1 }},
	}

	c := good()
	if err := c.Validate(); err != nil {
		t.Fatalf("good config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
