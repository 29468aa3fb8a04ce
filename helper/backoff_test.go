// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package helper

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"
)

func TestBackoff(t *testing.T) {
	const base = 100 * time.Millisecond
	const limit = 10 * time.Second

	cases := []struct {
		attempt  uint64
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{2, 1600 * time.Millisecond},
		{3, 6400 * time.Millisecond},
		{4, 10 * time.Second},
		{30, 10 * time.Second},
		{500, 10 * time.Second},
	}

	for _, tc := range cases {
		must.Eq(t, tc.expected, Backoff(base, limit, tc.attempt))
	}
}

func TestBackoff_OverflowCapped(t *testing.T) {
	got := Backoff(time.Hour, 2*time.Hour, 20)
	must.Eq(t, 2*time.Hour, got)
}
