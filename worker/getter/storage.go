// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package getter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	gg "github.com/hashicorp/go-getter"
)

var (
	// getters is the map of getters suitable for resource staging. It is
	// initialized once and the lock guards access to it.
	getters map[string]gg.Getter
	lock    sync.Mutex
)

// getClient returns a go-getter client configured for single file downloads.
func getClient(src, dst string) *gg.Client {
	lock.Lock()
	defer lock.Unlock()

	if getters == nil {
		getters = make(map[string]gg.Getter, len(gg.Getters))
		for k, v := range gg.Getters {
			getters[k] = v
		}

		getters["file"] = &gg.FileGetter{Copy: true}
	}

	return &gg.Client{
		Src:     src,
		Dst:     dst,
		Dir:     false, // resources are staged one file at a time
		Getters: getters,
	}
}

// RemoteStorage is the default Storage implementation. Resources live under
// {baseURL}/{tenantCode}/resources/{fileName}; the base URL scheme selects
// the transport (s3, http, file, ...).
type RemoteStorage struct {
	baseURL string
}

func NewRemoteStorage(baseURL string) *RemoteStorage {
	return &RemoteStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (r *RemoteStorage) ResolveResourcePath(tenantCode, fileName string) string {
	return fmt.Sprintf("%s/%s/resources/%s", r.baseURL, tenantCode, strings.TrimLeft(fileName, "/"))
}

func (r *RemoteStorage) Download(ctx context.Context, tenantCode, remotePath, localPath string, deleteSource, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(localPath); err == nil {
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := getClient(remotePath, localPath).Get(); err != nil {
		return fmt.Errorf("error downloading resource: %v", err)
	}

	// deleteSource only makes sense for file scheme sources; remote schemes
	// ignore it.
	if deleteSource {
		src := strings.TrimPrefix(remotePath, "file://")
		if src != remotePath {
			_ = os.Remove(src)
		}
	}
	return nil
}
