// Package storage stores uploaded product images and exported reports on
// a local directory or an S3-compatible bucket.
//
//	disk, _ := storage.FromConfig(ctx)
//	path, _ := disk.Put(ctx, "products/12/taladro.jpg", file, "image/jpeg")
//	url := disk.URL(path)
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

// ErrNotFound is returned when a path does not exist on the disk.
var ErrNotFound = errors.New("storage: file not found")

// Disk is a flat key/value file store.
type Disk interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// FromConfig returns the disk named by STORAGE_DISK. An S3 disk that fails
// to initialise falls back to local with a warning.
func FromConfig(ctx context.Context) (Disk, error) {
	if config.StorageDefault() == "s3" {
		d, err := NewS3(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
		if err == nil {
			return d, nil
		}
		logger.Warn("storage: s3 disk unavailable, using local", "error", err)
	}
	return NewLocal(config.StorageLocalRoot(), config.StorageURL())
}

// Clean normalises a user-influenced path and rejects escapes from the root.
func Clean(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", errors.New("storage: empty path")
	}
	return p, nil
}
