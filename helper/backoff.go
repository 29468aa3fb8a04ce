// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package helper holds small functions shared across worker packages.
package helper

import "time"

// Backoff computes the exponential backoff for the given attempt, starting at
// base and capped at limit.
func Backoff(base, limit time.Duration, attempt uint64) time.Duration {
	const maxShift = 30
	if attempt > maxShift {
		attempt = maxShift
	}

	backoff := (1 << (2 * attempt)) * base
	if backoff > limit || backoff < base {
		backoff = limit
	}
	return backoff
}
