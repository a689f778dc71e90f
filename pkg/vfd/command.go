// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"strconv"
	"strings"
)

// CommandKind identifies a recognized command line
type CommandKind uint8

const (
	KindUnknown CommandKind = iota
	KindStatus
	KindMotorSettings
	KindHalt
	KindSetMotors
	KindVersion
	KindNumberMotors
	KindMotorControlPins
	KindFrequencyConfig

	numCommandKinds
)

// String returns the display name of the command kind
func (k CommandKind) String() string {
	return FormatCommandKind(k)
}

// Command is a classified command line
type Command struct {
	Kind    CommandKind
	Payload string // text after the SetMotors prefix, empty for other kinds
	Line    string
}

var exactCommands = map[string]CommandKind{
	CmdStatus:           KindStatus,
	CmdMotorSettings:    KindMotorSettings,
	CmdHalt:             KindHalt,
	CmdVersion:          KindVersion,
	CmdNumberMotors:     KindNumberMotors,
	CmdMotorControlPins: KindMotorControlPins,
	CmdFrequencyConfig:  KindFrequencyConfig,
}

// ClassifyCommand maps a complete line to its command kind. Exact matches are
// tried first, then the SetMotors prefix. Anything else is KindUnknown.
func ClassifyCommand(line string) Command {
	if kind, ok := exactCommands[line]; ok {
		return Command{Kind: kind, Line: line}
	}
	if payload, ok := strings.CutPrefix(line, CmdSetMotorsPrefix); ok {
		return Command{Kind: KindSetMotors, Payload: payload, Line: line}
	}
	return Command{Kind: KindUnknown, Line: line}
}

// Dispatcher executes classified commands against a motor state model
type Dispatcher struct {
	model   *MotorStateModel
	motors  []MotorConfig
	version string
}

// NewDispatcher creates a dispatcher. motors supplies the answers to the
// configuration queries and must have model.Count() entries.
func NewDispatcher(model *MotorStateModel, motors []MotorConfig, version string) *Dispatcher {
	if version == "" {
		version = FirmwareVersion
	}
	return &Dispatcher{model: model, motors: motors, version: version}
}

// Dispatch handles one complete line and returns the response text (without the
// line terminator). A non-nil error explains an Invalid response; the model is
// untouched whenever an error is returned.
func (d *Dispatcher) Dispatch(line string) (string, Command, error) {
	cmd := ClassifyCommand(line)

	switch cmd.Kind {
	case KindStatus:
		return RespOK, cmd, nil

	case KindMotorSettings:
		return EncodeMotorSettings(d.model.Snapshot()), cmd, nil

	case KindHalt:
		d.model.HaltAll()
		return RespACK, cmd, nil

	case KindSetMotors:
		states, err := DecodeMotorSettings(cmd.Payload, d.model.Count())
		if err != nil {
			return RespInvalid, cmd, err
		}
		if err := d.model.Commit(states); err != nil {
			return RespInvalid, cmd, err
		}
		return RespACK, cmd, nil

	case KindVersion:
		return d.version, cmd, nil

	case KindNumberMotors:
		return strconv.Itoa(d.model.Count()), cmd, nil

	case KindMotorControlPins:
		return EncodeMotorControlPins(d.motors), cmd, nil

	case KindFrequencyConfig:
		return EncodeFrequencyConfig(d.motors), cmd, nil
	}

	return RespInvalid, cmd, commandError(line)
}
