// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package getter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shoenig/test/must"
)

func TestRemoteStorage_ResolveResourcePath(t *testing.T) {
	cases := []struct {
		name     string
		baseURL  string
		tenant   string
		file     string
		expected string
	}{
		{
			name:     "s3 base",
			baseURL:  "s3::https://objects.example.com/cascade",
			tenant:   "tenant-a",
			file:     "etl.sh",
			expected: "s3::https://objects.example.com/cascade/tenant-a/resources/etl.sh",
		},
		{
			name:     "trailing slash trimmed",
			baseURL:  "file:///srv/resources/",
			tenant:   "tenant-a",
			file:     "etl.sh",
			expected: "file:///srv/resources/tenant-a/resources/etl.sh",
		},
		{
			name:     "leading slash on file trimmed",
			baseURL:  "file:///srv/resources",
			tenant:   "tenant-a",
			file:     "/nested/etl.sh",
			expected: "file:///srv/resources/tenant-a/resources/nested/etl.sh",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := NewRemoteStorage(tc.baseURL)
			must.Eq(t, tc.expected, storage.ResolveResourcePath(tc.tenant, tc.file))
		})
	}
}

func TestRemoteStorage_Download_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "etl.sh")
	must.NoError(t, os.WriteFile(localPath, []byte("original"), 0o644))

	// The remote path is bogus; with overwrite off and the file present no
	// download may be attempted.
	storage := NewRemoteStorage("file:///does/not/exist")
	err := storage.Download(context.Background(), "tenant-a",
		"file:///does/not/exist/etl.sh", localPath, false, false)
	must.NoError(t, err)

	content, err := os.ReadFile(localPath)
	must.NoError(t, err)
	must.Eq(t, "original", string(content))
}

func TestRemoteStorage_Download_File(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "etl.sh")
	must.NoError(t, os.WriteFile(srcPath, []byte("echo etl"), 0o644))

	dstPath := filepath.Join(t.TempDir(), "etl.sh")
	storage := NewRemoteStorage("file://" + srcDir)
	err := storage.Download(context.Background(), "tenant-a",
		"file://"+srcPath, dstPath, false, true)
	must.NoError(t, err)

	content, err := os.ReadFile(dstPath)
	must.NoError(t, err)
	must.Eq(t, "echo etl", string(content))

	// The source survives when deleteSource is off.
	_, err = os.Stat(srcPath)
	must.NoError(t, err)
}

func TestRemoteStorage_Download_DeleteSource(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "etl.sh")
	must.NoError(t, os.WriteFile(srcPath, []byte("echo etl"), 0o644))

	dstPath := filepath.Join(t.TempDir(), "etl.sh")
	storage := NewRemoteStorage("file://" + srcDir)
	err := storage.Download(context.Background(), "tenant-a",
		"file://"+srcPath, dstPath, true, true)
	must.NoError(t, err)

	_, err = os.Stat(srcPath)
	must.True(t, os.IsNotExist(err))
}

func TestRemoteStorage_Download_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	storage := NewRemoteStorage("file:///srv/resources")
	err := storage.Download(ctx, "tenant-a",
		"file:///srv/resources/etl.sh", filepath.Join(t.TempDir(), "etl.sh"), false, true)
	must.ErrorIs(t, err, context.Canceled)
}
