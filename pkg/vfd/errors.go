// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"errors"
	"fmt"
)

// Rejection reasons. All of them are answered with Invalid on the wire; the
// distinction only exists for logging and statistics.
var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMalformedNumber  = fmt.Errorf("%w: malformed numeric literal", ErrMalformedPayload)
	ErrMotorCount       = errors.New("motor count out of range")
)

// Host-side client errors
var (
	ErrTimeout          = errors.New("timed out waiting for response")
	ErrRejected         = errors.New("device answered Invalid")
	ErrUnexpectedReply  = errors.New("unexpected response")
	ErrConnectionClosed = errors.New("connection closed")
)

// ProtocolError describes why a command line was rejected.
type ProtocolError struct {
	Kind    error // ErrMalformedCommand, ErrMalformedPayload or ErrMalformedNumber
	Offset  int   // byte offset into the payload, -1 when not applicable
	Message string
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Offset, e.Message)
}

// Unwrap exposes the rejection kind to errors.Is
func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

func payloadError(offset int, format string, args ...interface{}) error {
	return &ProtocolError{Kind: ErrMalformedPayload, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func numberError(offset int, token string) error {
	return &ProtocolError{Kind: ErrMalformedNumber, Offset: offset, Message: fmt.Sprintf("invalid voltage %q", token)}
}

func commandError(line string) error {
	return &ProtocolError{Kind: ErrMalformedCommand, Offset: -1, Message: fmt.Sprintf("unrecognized command %q", line)}
}
