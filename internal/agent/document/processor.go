package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/feichai0017/doc2md/internal/models"
)

var (
	// ErrUnsupportedFileType is returned for kinds no extractor can turn into Markdown.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrDecode is returned when a Markdown file is not valid UTF-8.
	ErrDecode = errors.New("file content is not valid utf-8")
)

// Extractor turns an open file of a known kind into Markdown text.
type Extractor interface {
	// Extract reads the handle from its current position. Kinds outside the
	// supported set return ErrUnsupportedFileType.
	Extract(ctx context.Context, handle io.ReadSeeker, kind models.FileKind) (string, error)
}

// ReadMarkdown returns Markdown content unchanged after checking it decodes as UTF-8.
func ReadMarkdown(r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown: %w", err)
	}
	if !utf8.Valid(content) {
		return "", ErrDecode
	}
	return string(content), nil
}
