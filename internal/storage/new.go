package storage

import (
	"context"
	"fmt"

	"docservice/internal/config"
)

// New builds the content store selected by cfg.Backend. It is called once at
// process start; the returned Storage serves every request.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageMinIO, "":
		return NewMinIO(ctx, cfg.MinIO)
	case config.StorageS3:
		return NewS3(ctx, cfg.S3)
	case config.StorageAzure:
		return NewAzure(ctx, cfg.Azure)
	case config.StorageFilesystem:
		return NewFilesystem(cfg.Filesystem)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
