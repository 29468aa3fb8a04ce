// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package shell implements the shell task plugin: it materializes the task's
// raw script into the execute path, runs it under a dedicated process group,
// captures a bounded amount of output, and extracts variable pool entries and
// external application ids from that output.
package shell
