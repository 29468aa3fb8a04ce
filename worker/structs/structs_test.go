// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package structs

import (
	"bytes"
	"testing"
	"time"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/shoenig/test/must"
)

func TestMsgpackHandle_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, MsgpackHandle)
	must.NoError(t, enc.Encode(&TaskExecutionContext{
		TaskInstanceID: 42,
		TaskName:       "shell-42",
	}))

	var out TaskExecutionContext
	must.NoError(t, codec.NewDecoder(bytes.NewReader(buf.Bytes()), MsgpackHandle).Decode(&out))
	must.Eq(t, 42, out.TaskInstanceID)
	must.Eq(t, "shell-42", out.TaskName)

	// Raw msgpack bytes decode to Go strings in untyped maps.
	var generic interface{}
	must.NoError(t, codec.NewDecoder(bytes.NewReader(buf.Bytes()), MsgpackHandle).Decode(&generic))
	m, ok := generic.(map[string]interface{})
	must.True(t, ok)
	must.Eq(t, "shell-42", m["TaskName"])
}

func TestTaskExecutionContext_BuildTaskAppID(t *testing.T) {
	taskCtx := &TaskExecutionContext{
		ProcessInstanceID: 1001,
		TaskInstanceID:    42,
	}
	must.Eq(t, "1001_42", taskCtx.BuildTaskAppID())
}

func TestTaskExecutionContext_BuildTaskLogName(t *testing.T) {
	firstSubmit := time.Unix(1686820245, 0)
	taskCtx := &TaskExecutionContext{
		FirstSubmitTime:      firstSubmit,
		ProcessDefineCode:    900001,
		ProcessDefineVersion: 3,
		ProcessInstanceID:    1001,
		TaskInstanceID:       42,
	}
	must.Eq(t, "1686820245_900001_3_1001_42", taskCtx.BuildTaskLogName())
}

func TestTaskExecutionContext_Deadline(t *testing.T) {
	firstSubmit := time.Now()
	taskCtx := &TaskExecutionContext{
		FirstSubmitTime: firstSubmit,
		DelayMinutes:    5,
	}
	must.Eq(t, firstSubmit.Add(5*time.Minute), taskCtx.Deadline())

	taskCtx.DelayMinutes = 0
	must.Eq(t, firstSubmit, taskCtx.Deadline())
}

func TestExecutionStatus_Codes(t *testing.T) {
	// The numeric codes are the wire contract with masters.
	must.Eq(t, 0, int(ExecutionStatusSubmitted))
	must.Eq(t, 1, int(ExecutionStatusRunning))
	must.Eq(t, 3, int(ExecutionStatusPause))
	must.Eq(t, 5, int(ExecutionStatusStop))
	must.Eq(t, 6, int(ExecutionStatusFailure))
	must.Eq(t, 7, int(ExecutionStatusSuccess))
	must.Eq(t, 9, int(ExecutionStatusKill))
	must.Eq(t, 12, int(ExecutionStatusDelayExecution))
}

func TestExecutionStatus_Terminal(t *testing.T) {
	terminal := []ExecutionStatus{
		ExecutionStatusSuccess,
		ExecutionStatusFailure,
		ExecutionStatusKill,
		ExecutionStatusStop,
	}
	for _, status := range terminal {
		must.True(t, status.Terminal(), must.Sprintf("expected %s to be terminal", status))
	}

	nonTerminal := []ExecutionStatus{
		ExecutionStatusSubmitted,
		ExecutionStatusRunning,
		ExecutionStatusPause,
		ExecutionStatusDelayExecution,
	}
	for _, status := range nonTerminal {
		must.False(t, status.Terminal(), must.Sprintf("expected %s to be non-terminal", status))
	}
}
