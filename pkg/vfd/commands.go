// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

// Command builder functions return command lines without the terminator,
// ready for Client.Do or a raw write followed by "\n".

// SetMotorsCommand builds a SetMotors line committing states.
// The slice length must match the device's motor count or the device answers Invalid.
func SetMotorsCommand(states []MotorState) string {
	return CmdSetMotorsPrefix + EncodeMotorSettings(states)
}

// StoppedStates returns the state a Halt commits for n motors, for callers
// that mirror the device locally.
func StoppedStates(n int) []MotorState {
	return make([]MotorState, n)
}

// QueryCommands lists the read-only commands in the order a full device
// report issues them.
func QueryCommands() []string {
	return []string{
		CmdVersion,
		CmdNumberMotors,
		CmdMotorControlPins,
		CmdFrequencyConfig,
		CmdMotorSettings,
	}
}
