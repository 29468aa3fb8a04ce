// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package task declares the contract between the worker runtime and task
// plugins. A Channel is the factory registered per task type; a Task is one
// execution produced by it.
package task

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/cascade-workflow/cascade/worker/structs"
)

// Channel produces Task instances for a single task type.
type Channel interface {
	CreateTask(taskCtx *structs.TaskExecutionContext, logger hclog.Logger) Task
}

// Task is a single task execution. Init and Handle are driven sequentially by
// one worker slot; CancelApplication may be called concurrently with Handle
// and must be safe to invoke more than once.
type Task interface {
	// Init prepares the task, e.g. materializes command files into the
	// execute path.
	Init() error

	// Handle runs the task and blocks until the underlying process or remote
	// job completes or is cancelled.
	Handle() error

	// CancelApplication stops the running task. When force is set the task
	// must not wait for graceful shutdown.
	CancelApplication(force bool) error

	// ExitStatus reports the task outcome once Handle has returned.
	ExitStatus() structs.ExecutionStatus

	// ProcessID is the native pid of the spawned subprocess, or 0.
	ProcessID() int

	// AppIDs returns comma separated external application ids, e.g. YARN
	// applications launched by the task.
	AppIDs() string

	// Parameters exposes the task's parameter surface, including the
	// variable pool carried in and out of the execution.
	Parameters() *Parameters

	// NeedAlert reports whether an alert should be raised for the outcome.
	NeedAlert() bool

	// AlertInfo describes the alert to raise when NeedAlert is true.
	AlertInfo() AlertInfo
}

// Parameters is the parameter surface shared between the runner and a task.
// VarPool is both an input (seeded before Handle) and an output (collected
// after Handle).
type Parameters struct {
	VarPool []structs.Property
}

// AlertInfo describes an alert raised on task completion.
type AlertInfo struct {
	AlertGroupID int
	Title        string
	Content      string
}

// Process exit codes with well known meanings.
const (
	ExitCodeSuccess = 0
	ExitCodeKill    = 137
)

// StatusForExitCode maps a subprocess exit code to an execution status.
func StatusForExitCode(exitCode int) structs.ExecutionStatus {
	switch exitCode {
	case ExitCodeSuccess:
		return structs.ExecutionStatusSuccess
	case ExitCodeKill:
		return structs.ExecutionStatusKill
	default:
		return structs.ExecutionStatusFailure
	}
}
