// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vfd implements the line protocol spoken between a host computer and a
// variable-frequency drive controller.
//
// The controller drives up to four motor drives. Each drive has a digital run/stop
// signal, a digital direction signal and an analog frequency-set voltage. Commands
// arrive as newline-terminated ASCII lines and every complete line is answered with
// exactly one newline-terminated response line.
//
// This package provides line assembly, command classification and dispatch, the
// motor settings wire codec, the motor state model with its communication watchdog,
// voltage to DAC code mapping, and a host-side client.
package vfd

import "time"

// Motor slot limits
const (
	MaxMotors = 4
)

// Line assembly limits
const (
	DefaultMaxLineLength = 128
	MinLineLength        = 16
	LineTerminator       = '\n'
)

// Output and timing defaults
const (
	DefaultCodeMax         = 4095 // 12-bit DAC full scale
	DefaultWatchdogTimeout = 1000 * time.Millisecond
)

// Command text, matched exactly (or by prefix for SetMotors)
const (
	CmdStatus           = "Status?"
	CmdMotorSettings    = "MotorSettings?"
	CmdHalt             = "Halt"
	CmdSetMotorsPrefix  = "SetMotors: "
	CmdVersion          = "Version?"
	CmdNumberMotors     = "NumberMotors?"
	CmdMotorControlPins = "MotorControlPins?"
	CmdFrequencyConfig  = "FrequencyConfig?"
)

// Fixed responses
const (
	RespOK      = "OK"
	RespACK     = "ACK"
	RespInvalid = "Invalid"
)

// Motor settings letters
const (
	LetterRun     = 'A'
	LetterStop    = 'O'
	LetterForward = 'F'
	LetterReverse = 'R'
)

// VoltageDigits is the number of significant digits of an encoded voltage.
const VoltageDigits = 6

// FirmwareVersion is reported by Version? unless the device config overrides it.
const FirmwareVersion = "vfdctl 1.0.0"

// maxExponent bounds exponent accumulation; anything larger already saturates
// float64 to zero or infinity.
const maxExponent = 1000
