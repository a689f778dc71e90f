// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

// LineAssembler accumulates transport bytes into newline-terminated command lines.
//
// The working buffer never holds more than maxLength bytes. Feeding a byte into a
// full buffer discards the oldest byte first, so an overlong line keeps its most
// recent maxLength bytes. Once a newline arrives the line is latched until Take is
// called; bytes fed in between are discarded.
type LineAssembler struct {
	buffer    []byte
	maxLength int
	complete  bool
	dropped   uint64 // bytes lost to the sliding window or a latched line
}

// NewLineAssembler creates an assembler holding at most maxLength bytes
func NewLineAssembler(maxLength int) *LineAssembler {
	if maxLength < MinLineLength {
		maxLength = MinLineLength
	}
	return &LineAssembler{
		buffer:    make([]byte, 0, maxLength),
		maxLength: maxLength,
	}
}

// Feed appends one byte. It returns true when the byte completed a line.
//
// While a completed line is waiting for Take, Feed discards b and counts it as
// dropped. Callers holding more input must stop at the terminator, as Write
// does, and feed the rest after Take.
func (a *LineAssembler) Feed(b byte) bool {
	if a.complete {
		a.dropped++
		return false
	}

	if b == LineTerminator {
		a.complete = true
		return true
	}

	if len(a.buffer) == a.maxLength {
		copy(a.buffer, a.buffer[1:])
		a.buffer = a.buffer[:len(a.buffer)-1]
		a.dropped++
	}
	a.buffer = append(a.buffer, b)
	return false
}

// Write feeds p byte by byte and reports how many bytes were consumed before a
// line completed (len(p) if none did). It never returns an error.
func (a *LineAssembler) Write(p []byte) (int, error) {
	for i, b := range p {
		if a.Feed(b) {
			return i + 1, nil
		}
	}
	return len(p), nil
}

// Complete reports whether a line is waiting to be taken
func (a *LineAssembler) Complete() bool {
	return a.complete
}

// Take returns the completed line and clears the assembler. A single trailing
// carriage return is removed so CRLF hosts are understood.
func (a *LineAssembler) Take() (string, bool) {
	if !a.complete {
		return "", false
	}
	line := a.buffer
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	s := string(line)
	a.Reset()
	return s, true
}

// Reset discards any partial or completed line
func (a *LineAssembler) Reset() {
	a.buffer = a.buffer[:0]
	a.complete = false
}

// Len returns the number of buffered bytes
func (a *LineAssembler) Len() int {
	return len(a.buffer)
}

// Cap returns the maximum line length
func (a *LineAssembler) Cap() int {
	return a.maxLength
}

// Dropped returns the number of bytes discarded since creation
func (a *LineAssembler) Dropped() uint64 {
	return a.dropped
}
