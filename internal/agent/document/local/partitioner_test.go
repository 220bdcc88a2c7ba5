package local

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/agent/document"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

func buildPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func staticPartition(elements ...models.Element) PartitionFunc {
	return func(ctx context.Context, r io.Reader) ([]models.Element, error) {
		return elements, nil
	}
}

func TestExtractorMarkdownPassThrough(t *testing.T) {
	ext := NewExtractor(Partitioners{}, logger.NewTestLogger())

	out, err := ext.Extract(context.Background(), bytes.NewReader([]byte("# Hello\n\nworld")), models.FileKindMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n\nworld", out)
}

func TestExtractorMarkdownInvalidUTF8(t *testing.T) {
	ext := NewExtractor(Partitioners{}, logger.NewTestLogger())

	_, err := ext.Extract(context.Background(), bytes.NewReader([]byte{0xff, 0xfe, 0x41}), models.FileKindMarkdown)
	assert.ErrorIs(t, err, document.ErrDecode)
}

func TestExtractorUnsupportedKind(t *testing.T) {
	ext := NewExtractor(DefaultPartitioners(logger.NewTestLogger()), logger.NewTestLogger())

	_, err := ext.Extract(context.Background(), bytes.NewReader(nil), models.FileKindCSV)
	assert.ErrorIs(t, err, document.ErrUnsupportedFileType)
}

func TestExtractorLibraryUnavailable(t *testing.T) {
	ext := NewExtractor(Partitioners{
		PDF:  staticPartition(),
		DOCX: staticPartition(),
	}, logger.NewTestLogger())

	_, err := ext.Extract(context.Background(), bytes.NewReader(nil), models.FileKindDOCX)
	assert.ErrorIs(t, err, ErrLibraryUnavailable)

	// markdown never needs the library
	_, err = ext.Extract(context.Background(), bytes.NewReader([]byte("ok")), models.FileKindMarkdown)
	assert.NoError(t, err)
}

func TestExtractorRendersElements(t *testing.T) {
	ext := NewExtractor(Partitioners{
		PDF:  staticPartition(),
		DOCX: staticPartition(),
		PPTX: staticPartition(
			models.NewElement(models.ElementTitle, "Roadmap", 1, 1),
			models.NewElement(models.ElementListItem, "ship it", 0, 1),
		),
	}, logger.NewTestLogger())

	out, err := ext.Extract(context.Background(), bytes.NewReader(nil), models.FileKindPPTX)
	require.NoError(t, err)
	assert.Equal(t, "# Roadmap\n\n- ship it", out)
}

func TestExtractorBuffersPDFAndRewinds(t *testing.T) {
	content := []byte("%PDF-1.4 pretend")
	var seen []byte
	ext := NewExtractor(Partitioners{
		PDF: func(ctx context.Context, r io.Reader) ([]models.Element, error) {
			_, isBuffer := r.(*bytes.Reader)
			assert.True(t, isBuffer)
			var err error
			seen, err = io.ReadAll(r)
			return []models.Element{models.NewElement(models.ElementNarrativeText, "body", 0, 1)}, err
		},
		DOCX: staticPartition(),
		PPTX: staticPartition(),
	}, logger.NewTestLogger())

	handle := bytes.NewReader(content)
	_, err := handle.Seek(5, io.SeekStart)
	require.NoError(t, err)

	out, err := ext.Extract(context.Background(), handle, models.FileKindPDF)
	require.NoError(t, err)
	assert.Equal(t, "body", out)
	assert.Equal(t, content, seen)

	pos, err := handle.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestExtractorWrapsPartitionErrors(t *testing.T) {
	boom := errors.New("corrupt")
	ext := NewExtractor(Partitioners{
		PDF:  staticPartition(),
		DOCX: func(ctx context.Context, r io.Reader) ([]models.Element, error) { return nil, boom },
		PPTX: staticPartition(),
	}, logger.NewTestLogger())

	_, err := ext.Extract(context.Background(), bytes.NewReader(nil), models.FileKindDOCX)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "docx")
}

func TestDefaultPartitionersAvailable(t *testing.T) {
	assert.True(t, DefaultPartitioners(logger.NewNop()).Available())
	assert.False(t, Partitioners{}.Available())
}

func TestPageElements(t *testing.T) {
	text := "1. INTRODUCTION\nThis report covers\nthe third quarter.\n\n• Revenue grew\n- Costs fell\n3.2 Regional results\nNumbers by region."

	elements := pageElements(text, 4)
	require.Len(t, elements, 6)

	assert.Equal(t, models.ElementTitle, elements[0].Type())
	assert.Equal(t, 1, elements[0].Int("metadata/category_depth", 0))
	assert.Equal(t, models.ElementNarrativeText, elements[1].Type())
	assert.Equal(t, "This report covers the third quarter.", elements[1].String("text", ""))
	assert.Equal(t, "Revenue grew", elements[2].String("text", ""))
	assert.Equal(t, models.ElementListItem, elements[3].Type())
	assert.Equal(t, "3.2 Regional results", elements[4].String("text", ""))
	assert.Equal(t, 2, elements[4].Int("metadata/category_depth", 0))
	assert.Equal(t, 4, elements[5].Int("metadata/page_number", 0))
}

func TestIsLikelyHeading(t *testing.T) {
	assert.True(t, isLikelyHeading("SUMMARY"))
	assert.True(t, isLikelyHeading("Chapter 3 Methods"))
	assert.True(t, isLikelyHeading("2.1.4 Limits"))
	assert.False(t, isLikelyHeading("A sentence that ends."))
	assert.False(t, isLikelyHeading("2024"))
	assert.False(t, isLikelyHeading("3.14"))
	assert.Equal(t, 3, headingLevel("2.1.4 Limits"))
	assert.Equal(t, 2, headingLevel("Chapter 3 Methods"))
}

func TestPDFPartitionerRejectsGarbage(t *testing.T) {
	_, err := NewPDFPartitioner(logger.NewTestLogger()).Partition(context.Background(), bytes.NewReader([]byte("not a pdf")))
	assert.Error(t, err)
}
