// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package reporter delivers task lifecycle messages to masters and raises
// alerts on task completion. Delivery is at-least-once with bounded retry;
// after exhaustion the failure is logged and the master reconciles through
// its own timeout loop.
package reporter

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/cascade-workflow/cascade/helper"
	"github.com/cascade-workflow/cascade/worker/structs"
)

// Sender transmits a single lifecycle message to a master.
type Sender interface {
	Send(ctx context.Context, taskCtx *structs.TaskExecutionContext, masterAddress string, kind structs.MessageKind) error
}

// AlertClient forwards alerts to the alert service.
type AlertClient interface {
	SendAlert(groupID int, title, content string, strategy int) error
}

// Config configures a Reporter.
type Config struct {
	Sender      Sender
	AlertClient AlertClient

	// MaxAttempts bounds delivery retries per message.
	MaxAttempts int

	// BackoffBase is the first retry delay; subsequent delays grow
	// exponentially up to BackoffLimit.
	BackoffBase  time.Duration
	BackoffLimit time.Duration

	Logger hclog.Logger
}

type Reporter struct {
	sender       Sender
	alertClient  AlertClient
	maxAttempts  int
	backoffBase  time.Duration
	backoffLimit time.Duration
	logger       hclog.Logger
}

const (
	defaultMaxAttempts  = 3
	defaultBackoffBase  = 100 * time.Millisecond
	defaultBackoffLimit = 10 * time.Second
)

func New(config *Config) *Reporter {
	r := &Reporter{
		sender:       config.Sender,
		alertClient:  config.AlertClient,
		maxAttempts:  config.MaxAttempts,
		backoffBase:  config.BackoffBase,
		backoffLimit: config.BackoffLimit,
		logger:       config.Logger.Named("reporter"),
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.backoffBase <= 0 {
		r.backoffBase = defaultBackoffBase
	}
	if r.backoffLimit <= 0 {
		r.backoffLimit = defaultBackoffLimit
	}
	return r
}

// Send delivers a lifecycle message with bounded retry. The returned error
// reports delivery exhaustion for observability only; task-local state is
// authoritative regardless.
func (r *Reporter) Send(ctx context.Context, taskCtx *structs.TaskExecutionContext, masterAddress string, kind structs.MessageKind) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := helper.Backoff(r.backoffBase, r.backoffLimit, uint64(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = r.sender.Send(ctx, taskCtx, masterAddress, kind)
		if err == nil {
			return nil
		}
		r.logger.Warn("failed to send task message",
			"kind", kind, "task_instance_id", taskCtx.TaskInstanceID,
			"attempt", attempt+1, "error", err)
	}

	r.logger.Error("giving up sending task message, master will reconcile",
		"kind", kind, "task_instance_id", taskCtx.TaskInstanceID, "error", err)
	return err
}

// Alert raises an alert for a finished task, mapping a success status to the
// success warning strategy and everything else to failure. Alerting is best
// effort.
func (r *Reporter) Alert(groupID int, title, content string, status structs.ExecutionStatus) {
	if r.alertClient == nil {
		return
	}

	strategy := structs.WarningFailure
	if status == structs.ExecutionStatusSuccess {
		strategy = structs.WarningSuccess
	}
	if err := r.alertClient.SendAlert(groupID, title, content, strategy); err != nil {
		r.logger.Error("failed to send alert", "title", title, "error", err)
	}
}
