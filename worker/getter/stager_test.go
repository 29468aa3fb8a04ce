// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package getter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/shoenig/test/must"

	"github.com/cascade-workflow/cascade/worker/structs"
)

// memStorage is an in-memory Storage for tests: files is the remote content
// keyed by resolved remote path, failOn aborts a specific file's download.
type memStorage struct {
	lock   sync.Mutex
	files  map[string]string
	failOn string

	downloads []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string]string)}
}

func (m *memStorage) ResolveResourcePath(tenantCode, fileName string) string {
	return fmt.Sprintf("/dfs/%s/resources/%s", tenantCode, fileName)
}

func (m *memStorage) Download(_ context.Context, _, remotePath, localPath string, _, _ bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.downloads = append(m.downloads, remotePath)
	if m.failOn != "" && filepath.Base(remotePath) == m.failOn {
		return fmt.Errorf("remote path %s unavailable", remotePath)
	}
	content, ok := m.files[remotePath]
	if !ok {
		return fmt.Errorf("remote path %s not found", remotePath)
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (m *memStorage) downloadCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.downloads)
}

func TestStager_PlanDownloads_Empty(t *testing.T) {
	stager := NewStager(nil, false, hclog.NewNullLogger())

	downloads, err := stager.PlanDownloads(t.TempDir(), nil)
	must.NoError(t, err)
	must.SliceEmpty(t, downloads)
}

func TestStager_PlanDownloads_SkipsStaged(t *testing.T) {
	dir := t.TempDir()
	must.NoError(t, os.WriteFile(filepath.Join(dir, "present.sh"), []byte("x"), 0o644))

	stager := NewStager(newMemStorage(), true, hclog.NewNullLogger())
	downloads, err := stager.PlanDownloads(dir, map[string]string{
		"present.sh": "tenant-a",
		"missing.sh": "tenant-a",
	})
	must.NoError(t, err)
	must.Len(t, 1, downloads)
	must.Eq(t, "missing.sh", downloads[0].FileName)
	must.Eq(t, "tenant-a", downloads[0].TenantCode)
}

func TestStager_PlanDownloads_Ordered(t *testing.T) {
	stager := NewStager(newMemStorage(), true, hclog.NewNullLogger())
	downloads, err := stager.PlanDownloads(t.TempDir(), map[string]string{
		"b.sh": "tenant-a",
		"a.sh": "tenant-a",
		"c.sh": "tenant-a",
	})
	must.NoError(t, err)
	must.Len(t, 3, downloads)
	must.Eq(t, "a.sh", downloads[0].FileName)
	must.Eq(t, "b.sh", downloads[1].FileName)
	must.Eq(t, "c.sh", downloads[2].FileName)
}

func TestStager_PlanDownloads_StorageDisabled(t *testing.T) {
	storage := newMemStorage()
	stager := NewStager(storage, false, hclog.NewNullLogger())

	_, err := stager.PlanDownloads(t.TempDir(), map[string]string{"a.sh": "tenant-a"})
	must.ErrorIs(t, err, structs.ErrStorageNotConfigured)
	must.Zero(t, storage.downloadCount())
}

func TestStager_Download(t *testing.T) {
	dir := t.TempDir()
	storage := newMemStorage()
	storage.files["/dfs/tenant-a/resources/a.sh"] = "echo a"
	storage.files["/dfs/tenant-a/resources/b.sh"] = "echo b"

	stager := NewStager(storage, true, hclog.NewNullLogger())
	err := stager.Download(context.Background(), dir, []FileDownload{
		{FileName: "a.sh", TenantCode: "tenant-a"},
		{FileName: "b.sh", TenantCode: "tenant-a"},
	})
	must.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "a.sh"))
	must.NoError(t, err)
	must.Eq(t, "echo a", string(content))
	content, err = os.ReadFile(filepath.Join(dir, "b.sh"))
	must.NoError(t, err)
	must.Eq(t, "echo b", string(content))
}

func TestStager_Download_FirstFailureAborts(t *testing.T) {
	dir := t.TempDir()
	storage := newMemStorage()
	storage.files["/dfs/tenant-a/resources/a.sh"] = "echo a"
	storage.failOn = "b.sh"
	storage.files["/dfs/tenant-a/resources/c.sh"] = "echo c"

	stager := NewStager(storage, true, hclog.NewNullLogger())
	err := stager.Download(context.Background(), dir, []FileDownload{
		{FileName: "a.sh", TenantCode: "tenant-a"},
		{FileName: "b.sh", TenantCode: "tenant-a"},
		{FileName: "c.sh", TenantCode: "tenant-a"},
	})
	must.ErrorIs(t, err, structs.ErrResourceDownload)

	// a.sh made it down before the failure, c.sh was never attempted.
	_, statErr := os.Stat(filepath.Join(dir, "a.sh"))
	must.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "c.sh"))
	must.True(t, os.IsNotExist(statErr))
	must.Eq(t, 2, storage.downloadCount())
}
