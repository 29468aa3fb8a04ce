// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package structs declares the shared data types of the worker runtime: the
// task execution context handed down by a master, the properties and statuses
// it carries, and the message kinds reported back.
package structs

import (
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// MsgpackHandle is a shared handle for encoding/decoding structs sent over
// the master RPC transport.
var MsgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.RawToString = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}()

// MessageKind identifies a lifecycle message sent from worker to master.
type MessageKind string

const (
	// TaskExecuteRunning announces that a task has started executing.
	TaskExecuteRunning MessageKind = "TASK_EXECUTE_RUNNING"

	// TaskExecuteResult carries the terminal status of a task. Exactly one
	// result message is dispatched per run.
	TaskExecuteResult MessageKind = "TASK_EXECUTE_RESULT"
)

// Property is a single named parameter. Properties are merged last-write-wins
// and compared by Prop.
type Property struct {
	Prop  string `json:"prop"`
	Value string `json:"value"`
}

// TaskExecutionContext is the unit of work dispatched by a master. It is
// created externally, registered in the context cache, and mutated by exactly
// one TaskRunner until the terminal result message has been dispatched.
type TaskExecutionContext struct {
	TaskInstanceID       int
	ProcessInstanceID    int
	ProcessDefineCode    int64
	ProcessDefineVersion int

	// FirstSubmitTime combined with DelayMinutes yields the earliest instant
	// at which the task may begin executing.
	FirstSubmitTime time.Time
	DelayMinutes    int

	// ScheduleTime is the workflow trigger time, zero when the task was not
	// launched from a schedule.
	ScheduleTime time.Time

	TaskName string
	TaskType string

	// ExecutePath is the task's local scratch directory. It is removed after
	// the run unless develop mode is enabled; a value of "/" is never removed.
	ExecutePath string
	EnvFile     string
	DryRun      bool

	// GlobalParams is a serialized list of Property.
	GlobalParams string

	// TaskParams is the opaque plugin-specific configuration.
	TaskParams string

	ParamsMap     map[string]*Property
	DefinedParams map[string]string

	// VarPool is the serialized variable pool. It is seeded into the plugin
	// before handle and replaced with the plugin's output afterwards.
	VarPool string

	// Resources maps a resource file name to the tenant code owning it in
	// the remote store.
	Resources map[string]string

	CurrentExecutionStatus ExecutionStatus
	StartTime              time.Time
	EndTime                time.Time

	// ProcessID is the native pid of the spawned subprocess, or 0.
	ProcessID int

	// AppIDs holds comma separated external application ids, e.g. YARN.
	AppIDs string

	TaskAppID   string
	TaskLogName string
}

// BuildTaskAppID derives the stable task application id used by external
// log and correlation systems.
func (c *TaskExecutionContext) BuildTaskAppID() string {
	return fmt.Sprintf("%d_%d", c.ProcessInstanceID, c.TaskInstanceID)
}

// BuildTaskLogName derives the canonical per-task log tag.
func (c *TaskExecutionContext) BuildTaskLogName() string {
	return fmt.Sprintf("%d_%d_%d_%d_%d",
		c.FirstSubmitTime.Unix(),
		c.ProcessDefineCode,
		c.ProcessDefineVersion,
		c.ProcessInstanceID,
		c.TaskInstanceID)
}

// Deadline is the instant at which the task becomes eligible to run.
func (c *TaskExecutionContext) Deadline() time.Time {
	return c.FirstSubmitTime.Add(time.Duration(c.DelayMinutes) * time.Minute)
}
