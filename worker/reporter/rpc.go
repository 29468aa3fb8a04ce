// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"context"
	"fmt"
	"net"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"

	"github.com/cascade-workflow/cascade/worker/structs"
)

// RPC method names served by masters.
const (
	methodReportRunning = "Master.ReportTaskRunning"
	methodReportResult  = "Master.ReportTaskResult"
)

// TaskMessageRequest is the wire request for both lifecycle messages.
type TaskMessageRequest struct {
	Kind    structs.MessageKind
	Context *structs.TaskExecutionContext
}

// TaskMessageResponse is the wire response acknowledging a message.
type TaskMessageResponse struct {
	Accepted bool
}

// RPCSender sends lifecycle messages over msgpack RPC. A fresh connection is
// dialed per message; the retry layer above provides delivery persistence.
type RPCSender struct {
	dialTimeout time.Duration
	logger      hclog.Logger
}

const defaultDialTimeout = 5 * time.Second

func NewRPCSender(dialTimeout time.Duration, logger hclog.Logger) *RPCSender {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &RPCSender{
		dialTimeout: dialTimeout,
		logger:      logger.Named("rpc_sender"),
	}
}

func (s *RPCSender) Send(ctx context.Context, taskCtx *structs.TaskExecutionContext, masterAddress string, kind structs.MessageKind) error {
	method := ""
	switch kind {
	case structs.TaskExecuteRunning:
		method = methodReportRunning
	case structs.TaskExecuteResult:
		method = methodReportResult
	default:
		return fmt.Errorf("unknown message kind %q", kind)
	}

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", masterAddress)
	if err != nil {
		return fmt.Errorf("failed to dial master %s: %w", masterAddress, err)
	}

	rpcCodec := msgpackrpc.NewCodecFromHandle(true, true, conn, structs.MsgpackHandle)
	defer rpcCodec.Close()

	req := &TaskMessageRequest{
		Kind:    kind,
		Context: taskCtx,
	}
	var resp TaskMessageResponse
	if err := msgpackrpc.CallWithCodec(rpcCodec, method, req, &resp); err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	if !resp.Accepted {
		return fmt.Errorf("master %s rejected %s message", masterAddress, kind)
	}
	return nil
}
