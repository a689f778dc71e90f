// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"errors"
	"net"
	"testing"
	"time"
)

// serveEngine runs e on conn the way the device daemon does: every read is
// one tick, then idle ticks flush any queued lines.
func serveEngine(e *Engine, conn net.Conn) {
	start := time.Now()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		in := buf[:n]
		for {
			res := e.Tick(in, time.Since(start))
			in = nil
			if !res.Responded {
				break
			}
			if _, err := conn.Write(res.Wire()); err != nil {
				return
			}
		}
	}
}

func newPipeClient(t *testing.T, n int) (*Client, *Engine) {
	t.Helper()
	e, err := NewEngine(Config{Motors: testMotors(n), WatchdogTimeout: time.Minute}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	host, device := net.Pipe()
	t.Cleanup(func() {
		host.Close()
		device.Close()
	})
	go serveEngine(e, device)
	return NewClient(host, time.Second), e
}

// ============================================================
// Client Tests
// ============================================================

func TestClient_Status(t *testing.T) {
	c, _ := newPipeClient(t, 2)
	if err := c.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}
}

func TestClient_SetAndReadBack(t *testing.T) {
	c, e := newPipeClient(t, 2)

	want := []MotorState{
		{Running: true, Voltage: 4.5},
		{Reversed: true, Voltage: 7.25},
	}
	if err := c.SetMotors(want); err != nil {
		t.Fatalf("SetMotors: %v", err)
	}

	got, err := c.MotorSettings()
	if err != nil {
		t.Fatalf("MotorSettings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read back %d motors", len(got))
	}
	for i := range want {
		if got[i].Running != want[i].Running || got[i].Reversed != want[i].Reversed ||
			!approxEqual(got[i].Voltage, want[i].Voltage, 1e-9) {
			t.Errorf("motor %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := c.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	got, _ = c.MotorSettings()
	for i, s := range got {
		if s != Stopped {
			t.Errorf("motor %d = %+v after Halt", i, s)
		}
	}
	if e.Statistics().Count(KindSetMotors) != 1 {
		t.Errorf("SetMotors count = %d", e.Statistics().Count(KindSetMotors))
	}
}

func TestClient_Rejected(t *testing.T) {
	c, _ := newPipeClient(t, 2)
	err := c.SetMotors([]MotorState{{Running: true}})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("SetMotors with wrong count: got %v, want ErrRejected", err)
	}
}

func TestClient_ConfigQueries(t *testing.T) {
	c, _ := newPipeClient(t, 3)

	version, err := c.Version()
	if err != nil || version != FirmwareVersion {
		t.Errorf("Version = %q, %v", version, err)
	}

	n, err := c.NumberMotors()
	if err != nil || n != 3 {
		t.Errorf("NumberMotors = %d, %v", n, err)
	}

	pins, err := c.MotorControlPins()
	if err != nil || len(pins) != 3 || pins[2].Run != "GPIOc" {
		t.Errorf("MotorControlPins = %+v, %v", pins, err)
	}

	ranges, err := c.FrequencyConfig()
	if err != nil || len(ranges) != 3 || ranges[1].MaxHz != 60 {
		t.Errorf("FrequencyConfig = %+v, %v", ranges, err)
	}
}

func TestClient_Timeout(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	// read and never answer
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := device.Read(buf); err != nil {
				return
			}
		}
	}()

	c := NewClient(host, 50*time.Millisecond)
	if err := c.Status(); !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestClient_UnexpectedReply(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := device.Read(buf); err != nil {
				return
			}
			device.Write([]byte("WAT\n"))
		}
	}()

	c := NewClient(host, time.Second)
	if err := c.Status(); !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("Status: got %v, want ErrUnexpectedReply", err)
	}
	if _, err := c.NumberMotors(); !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("NumberMotors: got %v, want ErrUnexpectedReply", err)
	}
	if _, err := c.MotorSettings(); !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("MotorSettings: got %v, want ErrUnexpectedReply", err)
	}
}

func TestClient_ConnectionClosed(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()

	c := NewClient(host, time.Second)
	device.Close()
	<-c.Done()

	if err := c.Status(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("got %v, want ErrConnectionClosed", err)
	}
}

// ============================================================
// Link Statistics Tests
// ============================================================

func TestLinkStatistics(t *testing.T) {
	s := NewLinkStatistics()
	s.Update(2*time.Millisecond, nil)
	s.Update(4*time.Millisecond, nil)
	s.Update(0, ErrTimeout)
	s.Update(time.Millisecond, ErrRejected)
	s.Update(time.Millisecond, ErrUnexpectedReply)

	if s.Requests != 5 || s.ValidResponses != 2 || s.Timeouts != 1 || s.InvalidReplies != 1 || s.MalformedReplies != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.MinRTT != time.Millisecond || s.MaxRTT != 4*time.Millisecond {
		t.Errorf("RTT min/max = %v/%v", s.MinRTT, s.MaxRTT)
	}
	if s.AverageRTT() != 2*time.Millisecond {
		t.Errorf("AverageRTT = %v", s.AverageRTT())
	}
	if s.String() == "" {
		t.Error("empty summary")
	}

	s.Reset()
	if s.Requests != 0 || s.MaxRTT != 0 {
		t.Error("Reset did not clear counters")
	}
}
