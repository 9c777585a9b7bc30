// Package storage is the file store behind product images.
//
// Two drivers are available:
//   - "local": local filesystem, served by the HTTP layer under STORAGE_URL
//   - "s3":    S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Disks are built explicitly with New and passed to the services that need them:
//
//	disk, err := storage.New(storage.ConfigFromEnv())
//	err = disk.Put(ctx, "1700000000-abc.jpg", data, "image/jpeg")
//	url := disk.URL("1700000000-abc.jpg")
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by Get for a missing path.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the driver interface.
type Disk interface {
	// Put writes content to path, replacing any existing file.
	Put(ctx context.Context, path string, content []byte, contentType string) error

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes path. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// URL returns the public URL for path.
	URL(path string) string
}

// Config selects and configures a driver.
type Config struct {
	Driver string // "local" or "s3"

	LocalRoot string
	LocalURL  string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
	S3URL      string
}

// New builds the configured disk.
func New(cfg Config) (Disk, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalRoot, cfg.LocalURL)
	case "s3":
		return NewS3(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported disk %q (supported: local, s3)", cfg.Driver)
	}
}
