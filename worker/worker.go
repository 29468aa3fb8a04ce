// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package worker wires the task execution runtime together: the context
// cache, the delay queue, the worker pool and the reporting path. A Worker
// accepts task execution contexts from masters, schedules them respecting
// their delay, and routes external kill requests to the owning runner.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	uuid "github.com/hashicorp/go-uuid"
	"oss.indeed.com/go/libtime"

	"github.com/cascade-workflow/cascade/plugins/task"
	"github.com/cascade-workflow/cascade/worker/contextcache"
	"github.com/cascade-workflow/cascade/worker/delayqueue"
	"github.com/cascade-workflow/cascade/worker/getter"
	"github.com/cascade-workflow/cascade/worker/pool"
	"github.com/cascade-workflow/cascade/worker/reporter"
	"github.com/cascade-workflow/cascade/worker/structs"
	"github.com/cascade-workflow/cascade/worker/taskrunner"
	"github.com/cascade-workflow/cascade/worker/yarn"
)

// Config configures a Worker. Zero values fall back to the defaults below.
type Config struct {
	// MasterAddress receives lifecycle messages for every submitted task.
	MasterAddress string

	// ResourceManagerAddress enables out-of-band YARN kills when set.
	ResourceManagerAddress string

	// SystemEnvPath is injected into every context as EnvFile.
	SystemEnvPath string

	// DevelopMode leaves execute paths in place after a run.
	DevelopMode bool

	// ResourceUploadEnabled gates resource staging; when false any task
	// requiring downloads fails fast.
	ResourceUploadEnabled bool

	// WorkerSlots is the number of concurrently executing tasks.
	WorkerSlots int

	// Report retry bounds, passed through to the reporter.
	ReportMaxAttempts  int
	ReportBackoffBase  time.Duration
	ReportBackoffLimit time.Duration

	// Storage stages remote resources. Required when ResourceUploadEnabled.
	Storage getter.Storage

	// Sender delivers lifecycle messages. Defaults to the msgpack RPC
	// sender.
	Sender reporter.Sender

	// AlertClient forwards task alerts; nil disables alerting.
	AlertClient reporter.AlertClient

	// Registry maps task types to plugins.
	Registry *task.Registry

	Clock  libtime.Clock
	Logger hclog.Logger
}

const defaultWorkerSlots = 16

type Worker struct {
	id     string
	config *Config

	cache    *contextcache.Cache
	queue    *delayqueue.Queue[*taskrunner.TaskRunner]
	pool     *pool.WorkerPool
	reporter *reporter.Reporter
	stager   *getter.Stager
	killer   taskrunner.ApplicationKiller
	clock    libtime.Clock

	// runners tracks live runners by task instance id for kill routing.
	runners     map[int]*runnerEntry
	runnersLock sync.Mutex

	logger hclog.Logger
}

// NewWorker constructs a worker from the config without starting any slots.
func NewWorker(config *Config) (*Worker, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("missing logger")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("missing task plugin registry")
	}
	if config.ResourceUploadEnabled && config.Storage == nil {
		return nil, fmt.Errorf("resource upload enabled but no storage configured")
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate worker id: %w", err)
	}

	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}

	slots := config.WorkerSlots
	if slots <= 0 {
		slots = defaultWorkerSlots
	}

	logger := config.Logger.Named("worker").With("worker_id", id)

	sender := config.Sender
	if sender == nil {
		sender = reporter.NewRPCSender(0, logger)
	}

	w := &Worker{
		id:      id,
		config:  config,
		cache:   contextcache.New(),
		queue:   delayqueue.New[*taskrunner.TaskRunner](clock),
		clock:   clock,
		runners: make(map[int]*runnerEntry),
		logger:  logger,
	}

	w.reporter = reporter.New(&reporter.Config{
		Sender:       sender,
		AlertClient:  config.AlertClient,
		MaxAttempts:  config.ReportMaxAttempts,
		BackoffBase:  config.ReportBackoffBase,
		BackoffLimit: config.ReportBackoffLimit,
		Logger:       logger,
	})
	w.stager = getter.NewStager(config.Storage, config.ResourceUploadEnabled, logger)
	if config.ResourceManagerAddress != "" {
		w.killer = yarn.NewClient(config.ResourceManagerAddress, logger)
	}
	w.pool = pool.New(w.queue, slots, logger)

	return w, nil
}

// ID returns the worker's generated identity.
func (w *Worker) ID() string {
	return w.id
}

// ContextCache exposes the process-wide context cache.
func (w *Worker) ContextCache() *contextcache.Cache {
	return w.cache
}

// Start launches the worker pool.
func (w *Worker) Start() {
	w.pool.Start()
	w.logger.Info("worker started", "master_address", w.config.MasterAddress)
}

// Shutdown drains the pool, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.pool.Shutdown()
	w.logger.Info("worker stopped")
}

// Submit registers the context in the cache and enqueues a runner honoring
// the context's delay. Duplicate submissions for a task instance are
// rejected.
func (w *Worker) Submit(taskCtx *structs.TaskExecutionContext) error {
	if taskCtx == nil {
		return fmt.Errorf("nil task execution context")
	}
	if taskCtx.DelayMinutes < 0 {
		return fmt.Errorf("negative delay minutes: %d", taskCtx.DelayMinutes)
	}

	w.runnersLock.Lock()
	if _, exists := w.runners[taskCtx.TaskInstanceID]; exists {
		w.runnersLock.Unlock()
		return fmt.Errorf("task instance %d already submitted", taskCtx.TaskInstanceID)
	}
	w.runnersLock.Unlock()

	runner := taskrunner.NewTaskRunner(&taskrunner.Config{
		TaskExecutionContext: taskCtx,
		MasterAddress:        w.config.MasterAddress,
		Reporter:             w.reporter,
		Stager:               w.stager,
		Registry:             w.config.Registry,
		ContextCache:         w.cache,
		AppKiller:            w.killer,
		SystemEnvPath:        w.config.SystemEnvPath,
		DevelopMode:          w.config.DevelopMode,
		Clock:                w.clock,
		Logger:               w.logger,
	})
	entry := &runnerEntry{
		runner: runner,
		stopCh: make(chan struct{}),
	}
	w.runnersLock.Lock()
	w.runners[taskCtx.TaskInstanceID] = entry
	w.runnersLock.Unlock()

	w.cache.Put(taskCtx)
	if taskCtx.DelayMinutes > 0 {
		taskCtx.CurrentExecutionStatus = structs.ExecutionStatusDelayExecution
		w.logger.Info("task execution delayed",
			"task_instance_id", taskCtx.TaskInstanceID,
			"delay_minutes", taskCtx.DelayMinutes)
	}
	w.queue.Offer(runner)

	// Reap the runner entry once it reaches a terminal state or is dropped
	// from the queue by a kill.
	go func() {
		select {
		case <-runner.WaitCh():
		case <-entry.stopCh:
		}
		w.runnersLock.Lock()
		delete(w.runners, taskCtx.TaskInstanceID)
		w.runnersLock.Unlock()
	}()

	return nil
}

// runnerEntry pairs a live runner with the channel that releases its reaper
// when the runner is dropped without ever running.
type runnerEntry struct {
	runner *taskrunner.TaskRunner
	stopCh chan struct{}
}

// Kill cancels a task on behalf of a master. A task still waiting in the
// delay queue is dropped and reported as killed; a running task is cancelled
// through its runner and reports through the normal path.
func (w *Worker) Kill(taskInstanceID int) {
	w.runnersLock.Lock()
	entry, ok := w.runners[taskInstanceID]
	w.runnersLock.Unlock()
	if !ok {
		w.logger.Warn("kill requested for unknown task", "task_instance_id", taskInstanceID)
		return
	}

	if w.queue.Remove(taskInstanceID) {
		taskCtx := entry.runner.Context()
		now := w.clock.Now()
		if taskCtx.StartTime.IsZero() {
			taskCtx.StartTime = now
		}
		taskCtx.CurrentExecutionStatus = structs.ExecutionStatusKill
		taskCtx.EndTime = now

		w.cache.Remove(taskInstanceID)
		_ = w.reporter.Send(context.Background(), taskCtx, w.config.MasterAddress, structs.TaskExecuteResult)
		close(entry.stopCh)
		w.logger.Info("killed queued task before execution", "task_instance_id", taskInstanceID)
		return
	}

	entry.runner.Kill()
}
