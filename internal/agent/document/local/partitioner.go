// Package local extracts Markdown in-process by partitioning documents into elements.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/feichai0017/doc2md/internal/agent/document"
	"github.com/feichai0017/doc2md/internal/agent/document/markdown"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// ErrLibraryUnavailable is returned when a partitioner entry point was not provided.
var ErrLibraryUnavailable = errors.New("partitioning library is not available")

// PartitionFunc splits a document into ordered elements.
type PartitionFunc func(ctx context.Context, r io.Reader) ([]models.Element, error)

// Partitioners holds one entry point per supported binary kind.
type Partitioners struct {
	PDF  PartitionFunc
	DOCX PartitionFunc
	PPTX PartitionFunc
}

// Available reports whether every entry point is present.
func (p Partitioners) Available() bool {
	return p.PDF != nil && p.DOCX != nil && p.PPTX != nil
}

// DefaultPartitioners returns the built-in PDF, DOCX and PPTX partitioners.
func DefaultPartitioners(log logger.Logger) Partitioners {
	return Partitioners{
		PDF:  NewPDFPartitioner(log).Partition,
		DOCX: PartitionDOCX,
		PPTX: PartitionPPTX,
	}
}

// Extractor is the local document.Extractor.
type Extractor struct {
	partitioners Partitioners
	logger       logger.Logger
}

func NewExtractor(partitioners Partitioners, log logger.Logger) *Extractor {
	return &Extractor{
		partitioners: partitioners,
		logger:       log.Named("local"),
	}
}

func (e *Extractor) Extract(ctx context.Context, handle io.ReadSeeker, kind models.FileKind) (string, error) {
	if kind == models.FileKindMarkdown {
		return document.ReadMarkdown(handle)
	}
	switch kind {
	case models.FileKindPDF, models.FileKindDOCX, models.FileKindPPTX:
	default:
		return "", fmt.Errorf("%w: %s", document.ErrUnsupportedFileType, kind)
	}

	// all three must be present before any of them is used
	if !e.partitioners.Available() {
		return "", ErrLibraryUnavailable
	}

	var (
		elements []models.Element
		err      error
	)
	switch kind {
	case models.FileKindPDF:
		elements, err = e.partitionPDF(ctx, handle)
	case models.FileKindDOCX:
		elements, err = e.partitioners.DOCX(ctx, handle)
	case models.FileKindPPTX:
		elements, err = e.partitioners.PPTX(ctx, handle)
	}
	if err != nil {
		return "", fmt.Errorf("failed to partition %s: %w", kind, err)
	}

	e.logger.Debug("Partitioned document",
		logger.String("kind", string(kind)),
		logger.Int("elements", len(elements)),
	)
	return markdown.Render(elements), nil
}

// partitionPDF hands the partitioner an in-memory copy of the whole file and
// leaves the caller's handle at the start.
func (e *Extractor) partitionPDF(ctx context.Context, handle io.ReadSeeker) ([]models.Element, error) {
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}
	content, err := io.ReadAll(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer pdf: %w", err)
	}
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}
	return e.partitioners.PDF(ctx, bytes.NewReader(content))
}

// readerAt buffers r unless it already supports random access.
func readerAt(r io.Reader) (io.ReaderAt, int64, error) {
	if br, ok := r.(*bytes.Reader); ok {
		return br, br.Size(), nil
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(content), int64(len(content)), nil
}
