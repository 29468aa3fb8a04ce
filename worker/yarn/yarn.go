// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package yarn issues out-of-band application kills against a YARN
// ResourceManager. Kills are best effort; the caller is expected to log and
// swallow any error.
package yarn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	hclog "github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
)

const (
	// killTimeout bounds a single kill request so a hung ResourceManager
	// cannot stall task finalization.
	killTimeout = 10 * time.Second

	killBody = `{"state":"KILLED"}`
)

// Client kills YARN applications through the ResourceManager REST API.
type Client struct {
	rmAddress  string
	httpClient *http.Client
	logger     hclog.Logger
}

// NewClient returns a kill client for the ResourceManager at rmAddress
// (host:port or full http URL). An empty address disables the client.
func NewClient(rmAddress string, logger hclog.Logger) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = killTimeout
	return &Client{
		rmAddress:  rmAddress,
		httpClient: httpClient,
		logger:     logger.Named("yarn"),
	}
}

// KillApplications kills every application in the comma separated appIDs
// list. Each failure is collected; the task outcome never depends on the
// returned error.
func (c *Client) KillApplications(ctx context.Context, appIDs string) error {
	if c.rmAddress == "" || strings.TrimSpace(appIDs) == "" {
		return nil
	}

	var mErr *multierror.Error
	for _, appID := range strings.Split(appIDs, ",") {
		appID = strings.TrimSpace(appID)
		if appID == "" {
			continue
		}
		if err := c.killApplication(ctx, appID); err != nil {
			c.logger.Error("failed to kill yarn application", "app_id", appID, "error", err)
			mErr = multierror.Append(mErr, err)
			continue
		}
		c.logger.Info("killed yarn application", "app_id", appID)
	}
	return mErr.ErrorOrNil()
}

func (c *Client) killApplication(ctx context.Context, appID string) error {
	url := fmt.Sprintf("%s/ws/v1/cluster/apps/%s/state", c.baseURL(), appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader([]byte(killBody)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	// 200 for state transitions, 202 while the kill is in progress.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %s killing application %s", resp.Status, appID)
	}
	return nil
}

func (c *Client) baseURL() string {
	if strings.HasPrefix(c.rmAddress, "http://") || strings.HasPrefix(c.rmAddress, "https://") {
		return strings.TrimRight(c.rmAddress, "/")
	}
	return "http://" + c.rmAddress
}
