// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package taskrunner drives a single task execution context through its
// lifecycle: staging, plugin execution, result collection, reporting and
// cleanup. One runner owns one context and is executed by exactly one worker
// slot; Kill is the only operation safe to invoke concurrently with Run.
package taskrunner

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	multierror "github.com/hashicorp/go-multierror"
	"oss.indeed.com/go/libtime"

	"github.com/cascade-workflow/cascade/plugins/task"
	"github.com/cascade-workflow/cascade/worker/contextcache"
	"github.com/cascade-workflow/cascade/worker/getter"
	"github.com/cascade-workflow/cascade/worker/reporter"
	"github.com/cascade-workflow/cascade/worker/structs"
	"github.com/cascade-workflow/cascade/worker/taskenv"
	"github.com/cascade-workflow/cascade/worker/workdir"
)

// ApplicationKiller kills external applications (e.g. YARN) recorded by a
// task. Implementations must be best effort and safe to call with an empty
// id list.
type ApplicationKiller interface {
	KillApplications(ctx context.Context, appIDs string) error
}

// Config holds the collaborators and process-wide settings a runner needs.
// All fields except AppKiller are required.
type Config struct {
	TaskExecutionContext *structs.TaskExecutionContext

	// MasterAddress is the master the task was dispatched by; lifecycle
	// messages go back to it.
	MasterAddress string

	Reporter     *reporter.Reporter
	Stager       *getter.Stager
	Registry     *task.Registry
	ContextCache *contextcache.Cache
	AppKiller    ApplicationKiller

	// SystemEnvPath is injected into the context as EnvFile during staging.
	SystemEnvPath string

	// DevelopMode suppresses execute path cleanup.
	DevelopMode bool

	Clock  libtime.Clock
	Logger hclog.Logger
}

// TaskRunner is the per-task state machine.
type TaskRunner struct {
	taskCtx *structs.TaskExecutionContext

	masterAddress string
	reporter      *reporter.Reporter
	stager        *getter.Stager
	registry      *task.Registry
	contextCache  *contextcache.Cache
	appKiller     ApplicationKiller
	systemEnvPath string
	developMode   bool
	clock         libtime.Clock

	// logger carries the task instance tags; taskLogger additionally carries
	// the task log name once staging resolves it and must not outlive the
	// run segment that installed it.
	logger     hclog.Logger
	taskLogger hclog.Logger

	// handle is the plugin task instance once created. handleLock guards it
	// against concurrent access from Kill.
	handle     task.Task
	handleLock sync.Mutex

	// killed records that the handle has been cancelled so external and
	// failure-path kills collapse into a single cancel. Guarded by
	// handleLock.
	killed bool

	// waitCh is closed when the runner has reached a terminal state.
	waitCh chan struct{}

	baseLabels []metrics.Label
}

func NewTaskRunner(config *Config) *TaskRunner {
	taskCtx := config.TaskExecutionContext

	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}

	tr := &TaskRunner{
		taskCtx:       taskCtx,
		masterAddress: config.MasterAddress,
		reporter:      config.Reporter,
		stager:        config.Stager,
		registry:      config.Registry,
		contextCache:  config.ContextCache,
		appKiller:     config.AppKiller,
		systemEnvPath: config.SystemEnvPath,
		developMode:   config.DevelopMode,
		clock:         clock,
		waitCh:        make(chan struct{}),
	}

	tr.logger = config.Logger.Named("task_runner").With(
		"process_instance_id", taskCtx.ProcessInstanceID,
		"task_instance_id", taskCtx.TaskInstanceID)
	tr.taskLogger = tr.logger

	tr.baseLabels = []metrics.Label{
		{
			Name:  "task_type",
			Value: taskCtx.TaskType,
		},
		{
			Name:  "task_instance_id",
			Value: strconv.Itoa(taskCtx.TaskInstanceID),
		},
	}

	return tr
}

// Context returns the task execution context owned by this runner.
func (tr *TaskRunner) Context() *structs.TaskExecutionContext {
	return tr.taskCtx
}

// WaitCh is closed when Run has reached a terminal state.
func (tr *TaskRunner) WaitCh() <-chan struct{} {
	return tr.waitCh
}

// ID returns the task instance id. It breaks delay queue ties; smaller ids
// run first.
func (tr *TaskRunner) ID() int {
	return tr.taskCtx.TaskInstanceID
}

// Deadline is the instant the task becomes eligible to run, derived from the
// first submit time and the delay minutes.
func (tr *TaskRunner) Deadline() time.Time {
	return tr.taskCtx.Deadline()
}

// Run executes the task state machine to completion. The terminal result
// message is always dispatched, even when any intermediate step fails.
func (tr *TaskRunner) Run() {
	defer close(tr.waitCh)

	if tr.taskCtx.DryRun {
		tr.runDryRun()
		return
	}

	err := tr.runTask()
	if err != nil {
		tr.taskLogger.Error("task execution failed", "error", err)
		tr.kill()

		tr.taskCtx.CurrentExecutionStatus = structs.ExecutionStatusFailure
		tr.taskCtx.EndTime = tr.clock.Now()
		if handle := tr.getHandle(); handle != nil {
			tr.taskCtx.ProcessID = handle.ProcessID()
			tr.taskCtx.AppIDs = handle.AppIDs()
		}
	}

	tr.finalize()
}

// runDryRun short-circuits the lifecycle: no staging, no plugin invocation,
// only a successful result message.
func (tr *TaskRunner) runDryRun() {
	now := tr.clock.Now()
	tr.taskCtx.CurrentExecutionStatus = structs.ExecutionStatusSuccess
	tr.taskCtx.StartTime = now
	tr.taskCtx.EndTime = now

	tr.contextCache.Remove(tr.taskCtx.TaskInstanceID)
	_ = tr.reporter.Send(context.Background(), tr.taskCtx, tr.masterAddress, structs.TaskExecuteResult)
	metrics.IncrCounterWithLabels([]string{"worker", "tasks", "dry_run"}, 1, tr.baseLabels)
	tr.logger.Info("task dry run success")
}

// runTask performs the staging, execution and collection steps in order and
// returns the first failure.
func (tr *TaskRunner) runTask() error {
	if err := tr.stage(); err != nil {
		return err
	}
	if err := tr.execute(); err != nil {
		return err
	}
	return tr.collect()
}

// stage announces the task as running, downloads missing resources and
// prepares the context for plugin execution.
func (tr *TaskRunner) stage() error {
	if tr.taskCtx.StartTime.IsZero() {
		tr.taskCtx.StartTime = tr.clock.Now()
	}
	tr.logger.Info("task begins execution", "execute_path", tr.taskCtx.ExecutePath)

	// The running message must be attempted before the plugin is invoked.
	// Delivery failure is not fatal; the master reconciles on timeout.
	tr.taskCtx.CurrentExecutionStatus = structs.ExecutionStatusRunning
	_ = tr.reporter.Send(context.Background(), tr.taskCtx, tr.masterAddress, structs.TaskExecuteRunning)

	downloads, err := tr.stager.PlanDownloads(tr.taskCtx.ExecutePath, tr.taskCtx.Resources)
	if err != nil {
		return err
	}
	if len(downloads) > 0 {
		if err := tr.stager.Download(context.Background(), tr.taskCtx.ExecutePath, downloads); err != nil {
			return err
		}
	}

	tr.taskCtx.EnvFile = tr.systemEnvPath
	tr.taskCtx.DefinedParams = taskenv.BuildGlobalParamsMap(tr.taskCtx.GlobalParams)
	tr.taskCtx.TaskAppID = tr.taskCtx.BuildTaskAppID()
	tr.taskCtx.ParamsMap = taskenv.PreBuildBusinessParams(tr.taskCtx.ScheduleTime)
	return nil
}

// execute creates the plugin task and blocks in its handle until the
// underlying process or job completes or is killed.
func (tr *TaskRunner) execute() error {
	channel, ok := tr.registry.Get(tr.taskCtx.TaskType)
	if !ok {
		return fmt.Errorf("%w: %s", structs.ErrPluginNotFound, tr.taskCtx.TaskType)
	}

	taskLogName := tr.taskCtx.BuildTaskLogName()
	tr.taskCtx.TaskLogName = taskLogName
	tr.taskLogger = tr.logger.With("task_log_name", taskLogName)

	handle := channel.CreateTask(tr.taskCtx, tr.taskLogger)
	tr.setHandle(handle)

	if err := handle.Init(); err != nil {
		return fmt.Errorf("task init failed: %w", err)
	}

	// Seed the variable pool produced by upstream tasks.
	varPool, err := parseVarPool(tr.taskCtx.VarPool)
	if err != nil {
		return fmt.Errorf("failed to parse var pool: %w", err)
	}
	handle.Parameters().VarPool = varPool

	if err := handle.Handle(); err != nil {
		return fmt.Errorf("task handle failed: %w", err)
	}
	return nil
}

// collect copies the plugin outcome back into the context and raises any
// requested alert.
func (tr *TaskRunner) collect() error {
	handle := tr.getHandle()

	if handle.NeedAlert() {
		info := handle.AlertInfo()
		tr.reporter.Alert(info.AlertGroupID, info.Title, info.Content, handle.ExitStatus())
	}

	varPool, err := serializeVarPool(handle.Parameters().VarPool)
	if err != nil {
		return fmt.Errorf("failed to serialize var pool: %w", err)
	}

	tr.taskCtx.CurrentExecutionStatus = handle.ExitStatus()
	tr.taskCtx.EndTime = tr.clock.Now()
	tr.taskCtx.ProcessID = handle.ProcessID()
	tr.taskCtx.AppIDs = handle.AppIDs()
	tr.taskCtx.VarPool = varPool

	tr.taskLogger.Info("task execution finished",
		"status", tr.taskCtx.CurrentExecutionStatus.String())
	return nil
}

// finalize runs for every non-dry run regardless of outcome: the context
// cache entry is evicted, the terminal result is dispatched and the execute
// path is cleared. The task-scoped logger is dropped so its tag cannot leak
// into the next task reusing the slot.
func (tr *TaskRunner) finalize() {
	tr.contextCache.Remove(tr.taskCtx.TaskInstanceID)
	_ = tr.reporter.Send(context.Background(), tr.taskCtx, tr.masterAddress, structs.TaskExecuteResult)
	workdir.Clear(tr.taskCtx.ExecutePath, tr.taskCtx.TaskName, tr.developMode, tr.taskLogger)
	tr.taskLogger = tr.logger

	switch tr.taskCtx.CurrentExecutionStatus {
	case structs.ExecutionStatusSuccess:
		metrics.IncrCounterWithLabels([]string{"worker", "tasks", "complete"}, 1, tr.baseLabels)
	case structs.ExecutionStatusKill, structs.ExecutionStatusStop:
		metrics.IncrCounterWithLabels([]string{"worker", "tasks", "killed"}, 1, tr.baseLabels)
	default:
		metrics.IncrCounterWithLabels([]string{"worker", "tasks", "failed"}, 1, tr.baseLabels)
	}
}

// Kill cancels the running task from outside the executing slot. It is
// idempotent, never blocks on the task finishing, and never panics; the
// runner still proceeds through its normal reporting and cleanup path.
func (tr *TaskRunner) Kill() {
	tr.kill()
}

func (tr *TaskRunner) kill() {
	tr.handleLock.Lock()
	handle := tr.handle
	if handle == nil || tr.killed {
		tr.handleLock.Unlock()
		return
	}
	tr.killed = true
	tr.handleLock.Unlock()

	tr.taskLogger.Info("killing task")

	var mErr *multierror.Error
	if err := handle.CancelApplication(true); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	// The handle is the only safe source of app ids here: the context is
	// still being mutated by the executing slot.
	appIDs := handle.AppIDs()
	if tr.appKiller != nil && appIDs != "" {
		if err := tr.appKiller.KillApplications(context.Background(), appIDs); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}

	if err := mErr.ErrorOrNil(); err != nil {
		tr.taskLogger.Error("kill task failed", "error", err)
	}
}

func (tr *TaskRunner) setHandle(handle task.Task) {
	tr.handleLock.Lock()
	defer tr.handleLock.Unlock()
	tr.handle = handle
}

func (tr *TaskRunner) getHandle() task.Task {
	tr.handleLock.Lock()
	defer tr.handleLock.Unlock()
	return tr.handle
}
