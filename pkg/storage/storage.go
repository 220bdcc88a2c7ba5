package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/feichai0017/doc2md/config"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
	"github.com/feichai0017/doc2md/pkg/storage/local"
	"github.com/feichai0017/doc2md/pkg/storage/minio"
	"github.com/feichai0017/doc2md/pkg/storage/s3"
)

// Storage is the object store behind uploads, parse results and prefix syncs.
type Storage interface {
	// Store writes the object and returns its key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// List returns the objects under prefix. URI holds the object key.
	List(ctx context.Context, prefix string) ([]models.RemoteFile, error)
	// CleanupBefore deletes objects under prefix last modified before threshold.
	CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error
}

// NewStorage builds the backend selected by cfg.Type.
func NewStorage(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case config.StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log)
	case config.StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log)
	case config.StorageTypeLocal:
		return local.NewLocalStorage(afero.NewOsFs(), cfg.Local.Root, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
