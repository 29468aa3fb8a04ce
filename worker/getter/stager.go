// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package getter stages remote resources into a task's execute path before
// the task runs.
package getter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/cascade-workflow/cascade/worker/structs"
)

// Storage is the remote object store resources are staged from.
type Storage interface {
	// ResolveResourcePath maps a tenant code and resource name to the remote
	// path to fetch. It performs no I/O.
	ResolveResourcePath(tenantCode, fileName string) string

	// Download copies a remote path to a local file, overwriting when
	// requested.
	Download(ctx context.Context, tenantCode, remotePath, localPath string, deleteSource, overwrite bool) error
}

// FileDownload is one staging entry: a resource file name and the tenant code
// owning it.
type FileDownload struct {
	FileName   string
	TenantCode string
}

// Stager plans and performs resource downloads for a task.
type Stager struct {
	storage Storage
	enabled bool
	logger  hclog.Logger
}

// NewStager returns a stager backed by the given storage. enabled reflects
// the process-wide resource upload switch; when it is off any required
// download fails fast with ErrStorageNotConfigured.
func NewStager(storage Storage, enabled bool, logger hclog.Logger) *Stager {
	return &Stager{
		storage: storage,
		enabled: enabled,
		logger:  logger.Named("stager"),
	}
}

// PlanDownloads returns the subset of resources whose file is not yet present
// at execLocalPath. An empty resource map is a no-op. Entries are ordered by
// file name so staging is deterministic.
func (s *Stager) PlanDownloads(execLocalPath string, resources map[string]string) ([]FileDownload, error) {
	if len(resources) == 0 {
		return nil, nil
	}

	var downloads []FileDownload
	for fileName, tenantCode := range resources {
		if _, err := os.Stat(filepath.Join(execLocalPath, fileName)); err == nil {
			s.logger.Debug("resource file already staged", "file", fileName)
			continue
		}
		downloads = append(downloads, FileDownload{
			FileName:   fileName,
			TenantCode: tenantCode,
		})
	}
	sort.Slice(downloads, func(i, j int) bool {
		return downloads[i].FileName < downloads[j].FileName
	})

	if len(downloads) > 0 && !s.enabled {
		return nil, structs.ErrStorageNotConfigured
	}
	return downloads, nil
}

// Download stages every planned entry into execLocalPath, overwriting any
// existing file. The first per-file failure aborts the batch; files already
// written are left for work directory cleanup.
func (s *Stager) Download(ctx context.Context, execLocalPath string, downloads []FileDownload) error {
	for _, download := range downloads {
		remotePath := s.storage.ResolveResourcePath(download.TenantCode, download.FileName)
		localPath := filepath.Join(execLocalPath, download.FileName)
		s.logger.Info("downloading resource file",
			"remote_path", remotePath, "local_path", localPath)

		err := s.storage.Download(ctx, download.TenantCode, remotePath, localPath, false, true)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", structs.ErrResourceDownload, download.FileName, err)
		}
	}
	return nil
}
