// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package workdir

import (
	"os"
	"path/filepath"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/shoenig/test/must"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func TestClear_RemovesPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exec")
	must.NoError(t, os.MkdirAll(dir, 0o755))
	must.NoError(t, os.WriteFile(filepath.Join(dir, "task.command"), []byte("#!/bin/sh\n"), 0o755))

	Clear(dir, "shell-1", false, testLogger())

	_, err := os.Stat(dir)
	must.True(t, os.IsNotExist(err))
}

func TestClear_MissingPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	Clear(dir, "shell-1", false, testLogger())

	_, err := os.Stat(dir)
	must.True(t, os.IsNotExist(err))
}

func TestClear_DevelopMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exec")
	must.NoError(t, os.MkdirAll(dir, 0o755))

	Clear(dir, "shell-1", true, testLogger())

	_, err := os.Stat(dir)
	must.NoError(t, err)
}

func TestClear_RefusesEmptyAndRoot(t *testing.T) {
	// Neither call may panic or attempt a removal.
	Clear("", "shell-1", false, testLogger())
	Clear("/", "shell-1", false, testLogger())
}
