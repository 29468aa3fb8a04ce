// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build unix

package shell

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/armon/circbuf"
	hclog "github.com/hashicorp/go-hclog"
	ps "github.com/mitchellh/go-ps"

	"github.com/cascade-workflow/cascade/plugins/task"
	"github.com/cascade-workflow/cascade/worker/structs"
)

// TaskType is the registry key for this plugin.
const TaskType = "SHELL"

const (
	// maxOutputSize bounds captured task output.
	maxOutputSize = 64 * 1024

	scriptPerms = 0o755
)

var (
	// setValueRe matches the ${setValue(key=value)} markers scripts use to
	// export variable pool entries.
	setValueRe = regexp.MustCompile(`\$\{setValue\(([^=)]+)=([^)]*)\)\}`)

	// appIDRe matches YARN application ids surfaced in task output.
	appIDRe = regexp.MustCompile(`application_\d+_\d+`)
)

// Channel creates shell tasks.
type Channel struct{}

func NewChannel() *Channel {
	return &Channel{}
}

func (c *Channel) CreateTask(taskCtx *structs.TaskExecutionContext, logger hclog.Logger) task.Task {
	return &ShellTask{
		taskCtx:    taskCtx,
		logger:     logger.Named("shell_task"),
		parameters: &task.Parameters{},
	}
}

// shellParams is the plugin-specific slice of the context's TaskParams.
type shellParams struct {
	RawScript string `json:"rawScript"`
}

// ShellTask is one shell script execution.
type ShellTask struct {
	taskCtx    *structs.TaskExecutionContext
	logger     hclog.Logger
	parameters *task.Parameters

	scriptPath string

	// lock guards cmd, pid and appIDs, which are read by the kill path
	// concurrently with Handle.
	lock   sync.Mutex
	cmd    *exec.Cmd
	pid    int
	appIDs string

	exitStatus structs.ExecutionStatus
	needAlert  bool
	alertInfo  task.AlertInfo
}

// Init writes the parameter-substituted script into the execute path.
func (t *ShellTask) Init() error {
	var params shellParams
	if err := json.Unmarshal([]byte(t.taskCtx.TaskParams), &params); err != nil {
		return fmt.Errorf("failed to parse shell task params: %w", err)
	}
	if strings.TrimSpace(params.RawScript) == "" {
		return fmt.Errorf("shell task has an empty raw script")
	}

	if err := os.MkdirAll(t.taskCtx.ExecutePath, 0o755); err != nil {
		return fmt.Errorf("failed to create execute path: %w", err)
	}

	script := t.buildScript(params.RawScript)
	t.scriptPath = filepath.Join(t.taskCtx.ExecutePath, t.taskCtx.TaskAppID+".command")
	if err := os.WriteFile(t.scriptPath, []byte(script), scriptPerms); err != nil {
		return fmt.Errorf("failed to write command file: %w", err)
	}

	t.logger.Info("shell task initialized", "script_path", t.scriptPath)
	return nil
}

// buildScript assembles the command file: shebang, environment sourcing and
// the raw script with ${param} placeholders substituted.
func (t *ShellTask) buildScript(rawScript string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if t.taskCtx.EnvFile != "" {
		fmt.Fprintf(&b, ". %s\n", t.taskCtx.EnvFile)
	}
	b.WriteString(substituteParams(rawScript, t.taskCtx))
	b.WriteString("\n")
	return b.String()
}

// substituteParams replaces ${name} placeholders with defined and business
// parameter values. Defined parameters win over business parameters.
func substituteParams(script string, taskCtx *structs.TaskExecutionContext) string {
	for name, property := range taskCtx.ParamsMap {
		if property == nil {
			continue
		}
		script = strings.ReplaceAll(script, "${"+name+"}", property.Value)
	}
	for name, value := range taskCtx.DefinedParams {
		script = strings.ReplaceAll(script, "${"+name+"}", value)
	}
	return script
}

// Handle runs the script and blocks until it exits or is cancelled.
func (t *ShellTask) Handle() error {
	buf, err := circbuf.NewBuffer(maxOutputSize)
	if err != nil {
		return fmt.Errorf("failed to create output buffer: %w", err)
	}

	cmd := exec.Command("/bin/sh", t.scriptPath)
	cmd.Dir = t.taskCtx.ExecutePath
	cmd.Stdout = buf
	cmd.Stderr = buf
	// Run the script in its own process group so cancellation reaps any
	// children it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	t.lock.Lock()
	if err := cmd.Start(); err != nil {
		t.lock.Unlock()
		t.exitStatus = structs.ExecutionStatusFailure
		return fmt.Errorf("failed to start command: %w", err)
	}
	t.cmd = cmd
	t.pid = cmd.Process.Pid
	t.lock.Unlock()

	t.logger.Info("shell task started", "pid", t.pid)

	waitErr := cmd.Wait()
	exitCode := exitCodeOf(cmd, waitErr)
	t.exitStatus = task.StatusForExitCode(exitCode)

	output := buf.String()
	t.collectVarPool(output)
	t.collectAppIDs(output)

	t.logger.Info("shell task finished", "exit_code", exitCode,
		"status", t.exitStatus.String())

	// A non-zero exit is a task outcome, not a handle error.
	return nil
}

// exitCodeOf derives the process exit code, mapping death-by-signal to the
// conventional 128+signal value.
func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return 1
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}

// collectVarPool extracts ${setValue(k=v)} markers into the output variable
// pool, last write winning per key.
func (t *ShellTask) collectVarPool(output string) {
	matches := setValueRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return
	}

	byProp := make(map[string]int)
	for _, match := range matches {
		prop, value := strings.TrimSpace(match[1]), match[2]
		if idx, ok := byProp[prop]; ok {
			t.parameters.VarPool[idx].Value = value
			continue
		}
		byProp[prop] = len(t.parameters.VarPool)
		t.parameters.VarPool = append(t.parameters.VarPool, structs.Property{
			Prop:  prop,
			Value: value,
		})
	}
}

// collectAppIDs extracts external application ids from the output, deduped
// in order of first appearance.
func (t *ShellTask) collectAppIDs(output string) {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range appIDRe.FindAllString(output, -1) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	t.lock.Lock()
	t.appIDs = strings.Join(ids, ",")
	t.lock.Unlock()
}

// CancelApplication signals the script's process group. force escalates to
// SIGKILL; without force only a SIGTERM is delivered.
func (t *ShellTask) CancelApplication(force bool) error {
	t.lock.Lock()
	pid := t.pid
	t.lock.Unlock()
	if pid == 0 {
		return nil
	}

	if proc, err := ps.FindProcess(pid); err == nil && proc == nil {
		// Already gone.
		return nil
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(-pid, sig); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to signal process group %d: %w", pid, err)
	}
	return nil
}

func (t *ShellTask) ExitStatus() structs.ExecutionStatus {
	return t.exitStatus
}

func (t *ShellTask) ProcessID() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.pid
}

func (t *ShellTask) AppIDs() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.appIDs
}

func (t *ShellTask) Parameters() *task.Parameters {
	return t.parameters
}

func (t *ShellTask) NeedAlert() bool {
	return t.needAlert
}

func (t *ShellTask) AlertInfo() task.AlertInfo {
	return t.alertInfo
}
