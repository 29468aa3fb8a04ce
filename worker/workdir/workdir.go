// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package workdir owns the per-task scratch directory lifecycle. Cleanup is
// best effort and never masks the task's own outcome.
package workdir

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// Clear removes the task's execute path after a run. Develop mode leaves the
// directory in place for inspection. An empty path or the filesystem root is
// never removed, and a path that does not exist is success. I/O errors are
// logged and swallowed.
func Clear(execLocalPath, taskName string, developMode bool, logger hclog.Logger) {
	if developMode {
		logger.Info("develop mode enabled, skipping execute path cleanup",
			"exec_local_path", execLocalPath)
		return
	}

	if execLocalPath == "" {
		logger.Warn("exec local path is empty", "task_name", taskName)
		return
	}

	if execLocalPath == "/" {
		logger.Warn("exec local path is '/', direct deletion is not allowed",
			"task_name", taskName)
		return
	}

	// RemoveAll treats a missing directory as success, which is expected for
	// tasks that never created their dir.
	if err := os.RemoveAll(execLocalPath); err != nil {
		logger.Error("failed to remove exec local path",
			"exec_local_path", execLocalPath, "error", err)
		return
	}
	logger.Debug("exec local path cleared", "exec_local_path", execLocalPath)
}
