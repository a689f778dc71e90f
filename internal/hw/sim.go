// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hw

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SimSink stands in for both output sinks when no hardware is attached.
// It logs every change of a digital level or analog code.
type SimSink struct {
	log logrus.FieldLogger

	mu     sync.Mutex
	levels map[string]bool
	codes  []uint16
}

// NewSimSink creates a simulator logging through log
func NewSimSink(log logrus.FieldLogger) *SimSink {
	return &SimSink{log: log, levels: make(map[string]bool)}
}

// SetLevel records a digital level
func (s *SimSink) SetLevel(channel string, level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.levels[channel]; ok && prev == level {
		return nil
	}
	s.levels[channel] = level
	s.log.WithFields(logrus.Fields{"channel": channel, "level": level}).Info("sim gpio")
	return nil
}

// SetCodes records analog codes
func (s *SimSink) SetCodes(codes []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, code := range codes {
		if i < len(s.codes) && s.codes[i] == code {
			continue
		}
		s.log.WithFields(logrus.Fields{"motor": i, "code": code}).Info("sim dac")
	}
	s.codes = append(s.codes[:0], codes...)
	return nil
}

// Level returns the last level written to channel
func (s *SimSink) Level(channel string) (level, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok = s.levels[channel]
	return level, ok
}

// Codes returns a copy of the last codes written
func (s *SimSink) Codes() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.codes...)
}
