// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package structs

// ExecutionStatus is the lifecycle status of a task instance. The numeric
// codes are part of the wire contract with masters and must not be renumbered.
type ExecutionStatus int

const (
	ExecutionStatusSubmitted      ExecutionStatus = 0
	ExecutionStatusRunning        ExecutionStatus = 1
	ExecutionStatusPause          ExecutionStatus = 3
	ExecutionStatusStop           ExecutionStatus = 5
	ExecutionStatusFailure        ExecutionStatus = 6
	ExecutionStatusSuccess        ExecutionStatus = 7
	ExecutionStatusKill           ExecutionStatus = 9
	ExecutionStatusDelayExecution ExecutionStatus = 12
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionStatusSubmitted:
		return "submitted"
	case ExecutionStatusRunning:
		return "running"
	case ExecutionStatusPause:
		return "pause"
	case ExecutionStatusStop:
		return "stop"
	case ExecutionStatusFailure:
		return "failure"
	case ExecutionStatusSuccess:
		return "success"
	case ExecutionStatusKill:
		return "kill"
	case ExecutionStatusDelayExecution:
		return "delay execution"
	default:
		return "unknown"
	}
}

// Terminal returns whether the status ends the task lifecycle.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailure, ExecutionStatusKill, ExecutionStatusStop:
		return true
	default:
		return false
	}
}

// Alert warning strategies, tracked by the alert service's WarningType.
const (
	WarningSuccess = 1
	WarningFailure = 2
)
