// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package structs

import "errors"

var (
	// ErrPluginNotFound is returned when no task channel is registered for a
	// context's task type.
	ErrPluginNotFound = errors.New("task plugin not found, check the plugin configuration")

	// ErrStorageNotConfigured is returned when a task requires resource
	// downloads but the resource store is disabled. Operators should enable
	// resource uploads or remove the resource references.
	ErrStorageNotConfigured = errors.New("storage service is not configured")

	// ErrResourceDownload wraps per-file staging failures.
	ErrResourceDownload = errors.New("resource download failed")
)
