// Package storage keeps account archives in object storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/taskflow/apiserver/config"
)

const (
	BackendNone  = "none"
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

// ObjectStorage is the subset of bucket operations the archiver needs.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// Open connects the configured backend and makes sure its bucket exists.
// It returns nil when archiving is disabled.
func Open(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", cfg.Backend, err)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewArchiver(backend), nil
}
