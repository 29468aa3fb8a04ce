// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package pool runs a fixed set of worker slots draining the delay queue.
// Each slot takes one ready runner at a time and drives its state machine to
// completion; the pool is the only component that invokes TaskRunner.Run.
package pool

import (
	"context"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-set/v3"

	"github.com/cascade-workflow/cascade/worker/delayqueue"
	"github.com/cascade-workflow/cascade/worker/taskrunner"
)

type WorkerPool struct {
	queue *delayqueue.Queue[*taskrunner.TaskRunner]
	size  int

	// running indexes the task instance ids currently executing on a slot.
	running     *set.Set[int]
	runningLock sync.RWMutex

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	wg             sync.WaitGroup

	logger hclog.Logger
}

func New(queue *delayqueue.Queue[*taskrunner.TaskRunner], size int, logger hclog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:          queue,
		size:           size,
		running:        set.New[int](size),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
		logger:         logger.Named("worker_pool"),
	}
}

// Start launches the slot goroutines.
func (p *WorkerPool) Start() {
	for slot := 0; slot < p.size; slot++ {
		p.wg.Add(1)
		go p.run(slot)
	}
	p.logger.Info("worker pool started", "slots", p.size)
}

// Shutdown stops taking new runners and waits for in-flight tasks to finish.
func (p *WorkerPool) Shutdown() {
	p.shutdownCancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// IsRunning reports whether the task instance is currently executing on a
// slot.
func (p *WorkerPool) IsRunning(taskInstanceID int) bool {
	p.runningLock.RLock()
	defer p.runningLock.RUnlock()
	return p.running.Contains(taskInstanceID)
}

// RunningCount returns the number of busy slots.
func (p *WorkerPool) RunningCount() int {
	p.runningLock.RLock()
	defer p.runningLock.RUnlock()
	return p.running.Size()
}

func (p *WorkerPool) run(slot int) {
	defer p.wg.Done()
	logger := p.logger.With("slot", slot)

	for {
		runner, err := p.queue.Take(p.shutdownCtx)
		if err != nil {
			logger.Debug("slot exiting", "error", err)
			return
		}

		p.track(runner.ID(), true)
		logger.Debug("slot executing task", "task_instance_id", runner.ID())
		runner.Run()
		p.track(runner.ID(), false)
	}
}

func (p *WorkerPool) track(taskInstanceID int, start bool) {
	p.runningLock.Lock()
	if start {
		p.running.Insert(taskInstanceID)
	} else {
		p.running.Remove(taskInstanceID)
	}
	busy := p.running.Size()
	p.runningLock.Unlock()

	metrics.SetGauge([]string{"worker", "pool", "busy_slots"}, float32(busy))
	metrics.SetGauge([]string{"worker", "pool", "queue_depth"}, float32(p.queue.Size()))
}
