package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// ErrInvalidKey is returned for keys that escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// LocalStorage keeps objects as files below a root directory.
type LocalStorage struct {
	fs     afero.Fs
	logger logger.Logger
}

// NewLocalStorage roots fs at root. Pass afero.NewMemMapFs() for an in-memory store.
func NewLocalStorage(fs afero.Fs, root string, log logger.Logger) (*LocalStorage, error) {
	if root != "" {
		if err := fs.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage root: %w", err)
		}
		fs = afero.NewBasePathFs(fs, root)
	}
	return &LocalStorage{fs: fs, logger: log}, nil
}

func cleanKey(key string) (string, error) {
	slashed := filepath.ToSlash(key)
	cleaned := path.Clean("/" + slashed)
	if cleaned == "/" || hasDotDot(slashed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func hasDotDot(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func (l *LocalStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	name, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := l.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	if err := afero.WriteReader(l.fs, name, reader); err != nil {
		l.logger.Error("Failed to store file",
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := l.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(name); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List walks the tree and returns files whose key starts with prefix, sorted by key.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]models.RemoteFile, error) {
	var files []models.RemoteFile
	err := afero.Walk(l.fs, "/", func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		key := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		files = append(files, models.RemoteFile{
			URI:          key,
			LastModified: info.ModTime(),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].URI < files[j].URI })
	return files, nil
}

func (l *LocalStorage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
	files, err := l.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !f.LastModified.Before(threshold) {
			continue
		}
		if err := l.Delete(ctx, f.URI); err != nil {
			l.logger.Error("Failed to delete expired object",
				logger.String("key", f.URI),
				logger.Error(err),
			)
			continue
		}
		l.logger.Info("Deleted expired object",
			logger.String("key", f.URI),
			logger.Time("lastModified", f.LastModified),
		)
	}
	return nil
}
