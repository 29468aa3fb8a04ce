// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package task

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/shoenig/test/must"

	"github.com/cascade-workflow/cascade/worker/structs"
)

type noopChannel struct {
	name string
}

func (c *noopChannel) CreateTask(*structs.TaskExecutionContext, hclog.Logger) Task {
	return nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Get("SHELL")
	must.False(t, ok)

	first := &noopChannel{name: "first"}
	registry.Register("SHELL", first)
	channel, ok := registry.Get("SHELL")
	must.True(t, ok)
	must.True(t, channel == Channel(first))

	// Re-registration replaces the previous channel.
	second := &noopChannel{name: "second"}
	registry.Register("SHELL", second)
	channel, ok = registry.Get("SHELL")
	must.True(t, ok)
	must.True(t, channel == Channel(second))
}

func TestStatusForExitCode(t *testing.T) {
	must.Eq(t, structs.ExecutionStatusSuccess, StatusForExitCode(0))
	must.Eq(t, structs.ExecutionStatusKill, StatusForExitCode(137))
	must.Eq(t, structs.ExecutionStatusFailure, StatusForExitCode(1))
	must.Eq(t, structs.ExecutionStatusFailure, StatusForExitCode(255))
}
