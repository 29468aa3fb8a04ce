// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package contextcache tracks the task execution contexts currently owned by
// this worker process, keyed by task instance id. Masters query it indirectly
// through ack/kill paths, and runners remove their entry on every terminal
// transition.
package contextcache

import (
	"sync"

	"github.com/cascade-workflow/cascade/worker/structs"
)

type Cache struct {
	lock    sync.RWMutex
	entries map[int]*structs.TaskExecutionContext
}

func New() *Cache {
	return &Cache{
		entries: make(map[int]*structs.TaskExecutionContext),
	}
}

// Put registers the context under its task instance id.
func (c *Cache) Put(taskCtx *structs.TaskExecutionContext) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries[taskCtx.TaskInstanceID] = taskCtx
}

// Get returns the context registered for the task instance id.
func (c *Cache) Get(taskInstanceID int) (*structs.TaskExecutionContext, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	taskCtx, ok := c.entries[taskInstanceID]
	return taskCtx, ok
}

// Remove drops the entry for the task instance id. Removing an absent entry
// is a no-op.
func (c *Cache) Remove(taskInstanceID int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.entries, taskInstanceID)
}

// Len returns the number of tracked contexts.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}
