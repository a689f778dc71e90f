// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/vfdctl/internal/config"
	"github.com/Thermoquad/vfdctl/internal/hw"
	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

var (
	serveConfigPath    string
	serveSim           bool
	serveLogLevel      string
	serveLogJSON       bool
	serveStatsInterval int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the motor controller on a serial port",
	Long: `Run the VFD motor controller.

The controller reads newline-terminated command lines from the serial port and
answers each one with a single line. Every tick it processes at most one
command, checks the communication watchdog, and rewrites the run/direction pins
and the analog output codes from the committed motor state.

If no line arrives within timeout_ms, every motor is stopped until the host
speaks again.

Hardware:
  GPIO pins are looked up by the run_pin/dir_pin names in the config file and
  the analog outputs are driven through a quad SPI DAC on dac.port. With --sim
  both are replaced by sinks that only log level and code changes.

The serial port comes from the config file; --port and --baud override it.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "vfdctl.yaml", "Device configuration file")
	serveCmd.Flags().BoolVar(&serveSim, "sim", false, "Use logging simulator sinks instead of GPIO/SPI hardware")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveLogJSON, "log-json", false, "Log in JSON format")
	serveCmd.Flags().IntVar(&serveStatsInterval, "stats-interval", 60, "Statistics log interval (seconds, 0 disables)")
}

func setupLogging() error {
	level, err := log.ParseLevel(serveLogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if serveLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	cfg, err := config.LoadFile(serveConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") || cfg.Serial.Port == "" {
		cfg.Serial.Port = portName
	}
	if cmd.Flags().Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if cfg.Serial.Port == "" {
		return fmt.Errorf("no serial port: set serial.port in %s or pass --port", serveConfigPath)
	}

	digital, analog, closeSinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	engine, err := vfd.NewEngine(cfg.DeviceConfig(), digital, analog)
	if err != nil {
		return err
	}

	conn, err := OpenSerialConnection(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.WithFields(log.Fields{
		"port":    cfg.Serial.Port,
		"baud":    cfg.Serial.Baud,
		"motors":  len(cfg.Motors),
		"timeout": engine.WatchdogTimeout(),
		"tick":    cfg.TickInterval(),
	}).Info("controller started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serveLoop(ctx, engine, conn, cfg.TickInterval())

	if stopErr := engine.ForceStop(); stopErr != nil {
		log.WithError(stopErr).Error("failed to stop motors on shutdown")
	}
	log.WithField("stats", engine.Statistics().String()).Info("controller stopped")
	return err
}

// openSinks builds the hardware output sinks, or the simulator when --sim is set
func openSinks(cfg *config.Config) (vfd.DigitalSink, vfd.AnalogSink, func(), error) {
	if serveSim {
		sim := hw.NewSimSink(log.WithField("sink", "sim"))
		log.Info("using simulator outputs")
		return sim, sim, func() {}, nil
	}

	if err := hw.Init(); err != nil {
		return nil, nil, nil, err
	}

	pins := make([]string, 0, 2*len(cfg.Motors))
	for _, m := range cfg.Motors {
		pins = append(pins, m.RunPin, m.DirPin)
	}
	gpioSink, err := hw.OpenGPIOSink(pins, log.WithField("sink", "gpio"))
	if err != nil {
		return nil, nil, nil, err
	}

	dacSink, err := hw.OpenDACSink(cfg.DAC.Port, cfg.DAC.SpeedHz, uint16(cfg.DAC.CodeMax), log.WithField("sink", "dac"))
	if err != nil {
		return nil, nil, nil, err
	}

	closeSinks := func() {
		if err := dacSink.Close(); err != nil {
			log.WithError(err).Warn("failed to close DAC port")
		}
	}
	return gpioSink, dacSink, closeSinks, nil
}

// serveLoop owns the engine. A reader goroutine only hands byte chunks over;
// every tick drains what arrived, runs the engine once, and writes the response.
func serveLoop(ctx context.Context, engine *vfd.Engine, conn Connection, tick time.Duration) error {
	chunks := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- data
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if serveStatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(serveStatsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	start := time.Now()
	var pending []byte
	var tl tickLogger
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested")
			return nil

		case err := <-readErr:
			if errors.Is(err, vfd.ErrConnectionClosed) {
				return nil
			}
			return fmt.Errorf("serial read failed: %w", err)

		case <-statsC:
			log.WithField("stats", engine.Statistics().String()).Info("statistics")

		case <-ticker.C:
			pending = drainChunks(chunks, pending[:0])
			res := engine.Tick(pending, time.Since(start))
			tl.log(res)

			if wire := res.Wire(); wire != nil {
				if _, err := conn.Write(wire); err != nil {
					log.WithError(err).Warn("serial write failed")
				}
			}
		}
	}
}

// drainChunks appends every chunk already queued without blocking
func drainChunks(chunks <-chan []byte, dst []byte) []byte {
	for {
		select {
		case data := <-chunks:
			dst = append(dst, data...)
		default:
			return dst
		}
	}
}

// tickLogger logs tick outcomes. A sink failure repeats on every tick until it
// clears, so only changes in the output error are logged.
type tickLogger struct {
	outputErr string
}

func (t *tickLogger) log(res vfd.TickResult) {
	if res.Responded {
		entry := log.WithFields(log.Fields{
			"command":  res.Command.Kind.String(),
			"response": res.Response,
		})
		if res.Err != nil {
			entry.WithError(res.Err).WithField("line", res.Command.Line).Warn("command rejected")
		} else {
			entry.Debug("command")
		}
	}
	if res.WatchdogRecovered {
		log.Info("host link recovered")
	}
	if res.WatchdogTripped {
		log.Info("watchdog timeout, all motors stopped")
	}
	switch {
	case res.OutputErr != nil && res.OutputErr.Error() != t.outputErr:
		t.outputErr = res.OutputErr.Error()
		log.WithError(res.OutputErr).Error("output write failed")
	case res.OutputErr == nil && t.outputErr != "":
		t.outputErr = ""
		log.Info("outputs recovered")
	}
}
