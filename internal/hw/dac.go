// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hw

import (
	"io"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// LTC2634-style command nibbles
const (
	dacCmdWriteInput = 0x0 // write input register n
	dacCmdUpdate     = 0x1 // update DAC register n from its input register
	dacAddrAll       = 0xF
)

// Transmitter is the half of spi.Conn the DAC sink uses
type Transmitter interface {
	Tx(w, r []byte) error
}

// DACSink writes one analog code per motor to a quad SPI DAC. All input
// registers are loaded first and then latched together with a single update.
type DACSink struct {
	tx     Transmitter
	closer io.Closer
	shift  uint // left-justifies a code in the 16 data bits of a frame
}

// NewDACSink creates a sink for a DAC whose full-scale code is codeMax
func NewDACSink(tx Transmitter, codeMax uint16) *DACSink {
	return &DACSink{
		tx:    tx,
		shift: uint(16 - bits.Len16(codeMax)),
	}
}

// OpenDACSink opens the SPI port name at speedHz in mode 0
func OpenDACSink(name string, speedHz int64, codeMax uint16, log logrus.FieldLogger) (*DACSink, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open spi port %q", name)
	}
	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "failed to configure spi port %q", name)
	}

	log.WithFields(logrus.Fields{
		"port":     name,
		"speed_hz": speedHz,
		"code_max": codeMax,
	}).Info("DAC sink ready")

	s := NewDACSink(conn, codeMax)
	s.closer = port
	return s, nil
}

// frame builds one 24-bit command word
func (s *DACSink) frame(cmd, addr byte, code uint16) []byte {
	data := code << s.shift
	return []byte{cmd<<4 | addr&0x0F, byte(data >> 8), byte(data)}
}

// SetCodes loads codes[i] into DAC channel i, then updates every channel at once.
// The update is skipped when any load failed so the outputs never latch a mix.
func (s *DACSink) SetCodes(codes []uint16) error {
	var err error
	for i, code := range codes {
		err = multierr.Append(err,
			errors.Wrapf(s.tx.Tx(s.frame(dacCmdWriteInput, byte(i), code), nil), "failed to load dac channel %d", i))
	}
	if err != nil {
		return err
	}
	return errors.Wrap(s.tx.Tx(s.frame(dacCmdUpdate, dacAddrAll, 0), nil), "failed to update dac outputs")
}

// Close releases the SPI port if the sink opened it
func (s *DACSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
