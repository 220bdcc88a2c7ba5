package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/feichai0017/doc2md/internal/models"
)

// StreamReader opens stored objects as seekable handles for the parser.
type StreamReader struct {
	storage Storage
}

func NewStreamReader(s Storage) *StreamReader {
	return &StreamReader{storage: s}
}

type bufferedFile struct {
	*bytes.Reader
}

func (bufferedFile) Close() error { return nil }

// OpenFile buffers the object named by file.URI in memory.
func (r *StreamReader) OpenFile(ctx context.Context, file models.RemoteFile) (io.ReadSeekCloser, error) {
	rc, err := r.storage.Get(ctx, file.URI)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.URI, err)
	}
	return bufferedFile{bytes.NewReader(data)}, nil
}

// NewBufferedFile wraps in-memory content in the handle type OpenFile returns.
func NewBufferedFile(data []byte) io.ReadSeekCloser {
	return bufferedFile{bytes.NewReader(data)}
}
