// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Thermoquad/vfdctl/internal/hw"
	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

func testDeviceConfig(n int) vfd.Config {
	names := []string{"GPIO17", "GPIO27", "GPIO22", "GPIO23", "GPIO24", "GPIO25", "GPIO5", "GPIO6"}
	motors := make([]vfd.MotorConfig, n)
	for i := range motors {
		motors[i] = vfd.MotorConfig{
			RunChannel:     names[2*i],
			DirChannel:     names[2*i+1],
			MaxVoltage:     10,
			Slope:          0.01,
			MaxFrequencyHz: 60,
		}
	}
	return vfd.Config{Motors: motors, WatchdogTimeout: time.Minute}
}

// ============================================================
// Serve Loop Tests
// ============================================================

func TestServeLoop_AnswersClient(t *testing.T) {
	serveStatsInterval = 0
	logger, _ := test.NewNullLogger()
	sim := hw.NewSimSink(logger)

	engine, err := vfd.NewEngine(testDeviceConfig(2), sim, sim)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveLoop(ctx, engine, device, time.Millisecond) }()

	client := vfd.NewClient(host, time.Second)
	if err := client.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}

	want := []vfd.MotorState{{Running: true, Voltage: 5}, {Reversed: true, Voltage: 2.5}}
	if err := client.SetMotors(want); err != nil {
		t.Fatalf("SetMotors: %v", err)
	}
	got, err := client.MotorSettings()
	if err != nil {
		t.Fatalf("MotorSettings: %v", err)
	}
	for i := range want {
		if got[i].Running != want[i].Running || got[i].Reversed != want[i].Reversed ||
			math.Abs(got[i].Voltage-want[i].Voltage) > 1e-9 {
			t.Errorf("motor %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if level, ok := sim.Level("GPIO17"); !ok || !level {
		t.Errorf("run pin of motor 0: level=%v ok=%v", level, ok)
	}
	if codes := sim.Codes(); len(codes) != 2 || codes[0] != 500 || codes[1] != 250 {
		t.Errorf("codes = %v, want [500 250]", codes)
	}

	if err := client.SetMotors(want[:1]); !errors.Is(err, vfd.ErrRejected) {
		t.Errorf("short SetMotors: got %v, want ErrRejected", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveLoop returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serveLoop did not stop on cancel")
	}
}

func TestServeLoop_ReadErrorStops(t *testing.T) {
	serveStatsInterval = 0
	engine, err := vfd.NewEngine(testDeviceConfig(1), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	host, device := net.Pipe()
	host.Close()

	err = serveLoop(context.Background(), engine, device, time.Millisecond)
	if err == nil {
		t.Error("expected a read error")
	}
}

func TestDrainChunks(t *testing.T) {
	chunks := make(chan []byte, 4)
	chunks <- []byte("Sta")
	chunks <- []byte("tus?\n")

	got := drainChunks(chunks, nil)
	if string(got) != "Status?\n" {
		t.Errorf("got %q", got)
	}
	if got := drainChunks(chunks, nil); len(got) != 0 {
		t.Errorf("empty channel drained %q", got)
	}
}

// ============================================================
// Tick Logging Tests
// ============================================================

func TestTickLogger(t *testing.T) {
	hook := test.NewGlobal()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	var tl tickLogger

	tl.log(vfd.TickResult{
		Responded: true,
		Response:  vfd.RespInvalid,
		Command:   vfd.ClassifyCommand("Bogus"),
		Err:       vfd.ErrMalformedCommand,
	})
	if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatalf("rejected command not logged at warn: %+v", hook.LastEntry())
	}
	if hook.LastEntry().Data["command"] != "UNKNOWN" {
		t.Errorf("command field = %v", hook.LastEntry().Data["command"])
	}

	hook.Reset()
	tl.log(vfd.TickResult{WatchdogTripped: true})
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.InfoLevel {
		t.Errorf("watchdog trip entries = %+v", hook.Entries)
	}

	// repeated output failures are logged once
	hook.Reset()
	outErr := errors.New("pin GPIO17 stuck")
	tl.log(vfd.TickResult{OutputErr: outErr})
	tl.log(vfd.TickResult{OutputErr: outErr})
	tl.log(vfd.TickResult{OutputErr: outErr})
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.ErrorLevel {
		t.Errorf("output error entries = %d", len(hook.Entries))
	}

	hook.Reset()
	tl.log(vfd.TickResult{})
	if len(hook.Entries) != 1 || hook.LastEntry().Message != "outputs recovered" {
		t.Errorf("recovery entries = %+v", hook.Entries)
	}
}
