// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package task

import "sync"

// Registry maps task types to their channels. It is safe for concurrent use;
// plugins are expected to register during agent setup but lookups may happen
// from any worker slot.
type Registry struct {
	lock     sync.RWMutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register installs the channel for a task type, replacing any previous
// registration.
func (r *Registry) Register(taskType string, channel Channel) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.channels[taskType] = channel
}

// Get returns the channel registered for the task type.
func (r *Registry) Get(taskType string) (Channel, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	channel, ok := r.channels[taskType]
	return channel, ok
}
