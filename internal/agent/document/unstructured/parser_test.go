package unstructured

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/agent"
	"github.com/feichai0017/doc2md/internal/agent/document/local"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type handle struct {
	*bytes.Reader
	closed *int32
}

func (h handle) Close() error {
	atomic.AddInt32(h.closed, 1)
	return nil
}

type fakeReader struct {
	files  map[string][]byte
	opened int32
	closed int32
}

func (r *fakeReader) OpenFile(ctx context.Context, file models.RemoteFile) (io.ReadSeekCloser, error) {
	content, ok := r.files[file.URI]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", file.URI)
	}
	atomic.AddInt32(&r.opened, 1)
	return handle{Reader: bytes.NewReader(content), closed: &r.closed}, nil
}

func fakePartitioners() local.Partitioners {
	partition := func(text string) local.PartitionFunc {
		return func(ctx context.Context, r io.Reader) ([]models.Element, error) {
			return []models.Element{
				models.NewElement(models.ElementTitle, text, 2, 1),
				models.NewElement(models.ElementNarrativeText, "body", 0, 1),
			}, nil
		}
	}
	return local.Partitioners{
		PDF:  partition("from pdf"),
		DOCX: partition("from docx"),
		PPTX: partition("from pptx"),
	}
}

func newParser(log logger.Logger, opts ...Option) *Parser {
	return NewParser(agent.NewExtractorFactory(fakePartitioners(), log), log, opts...)
}

func streamConfig(skip bool, processing models.ProcessingConfig) models.StreamConfig {
	return models.StreamConfig{
		Name: "docs",
		Format: &models.UnstructuredFormat{
			SkipUnprocessableFileTypes: skip,
			Processing:                 processing,
		},
	}
}

func TestParseRecordsMarkdown(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{"s3://bucket/notes.md": []byte("# Notes\n\nhello")}}

	records, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}),
		models.RemoteFile{URI: "s3://bucket/notes.md"}, reader)
	require.NoError(t, err)
	assert.Equal(t, []models.ParsedRecord{{Content: "# Notes\n\nhello", DocumentKey: "s3://bucket/notes.md"}}, records)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.closed))
}

func TestParseRecordsMarkdownInvalidUTF8(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{"bad.md": {0xc3, 0x28}}}

	_, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}),
		models.RemoteFile{URI: "bad.md"}, reader)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestParseRecordsLocalUsesMIMEHint(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{"s3://bucket/object": []byte("opaque")}}

	records, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}),
		models.RemoteFile{URI: "s3://bucket/object", MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		reader)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "## from pptx\n\nbody", records[0].Content)
}

func TestParseRecordsSkipsUnsupported(t *testing.T) {
	log := logger.NewTestLogger()
	reader := &fakeReader{files: map[string][]byte{"s3://bucket/data.csv": []byte("a,b\n1,2\n")}}

	records, err := newParser(log).ParseRecords(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}),
		models.RemoteFile{URI: "s3://bucket/data.csv"}, reader)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, log.Find("WARN", "File s3://bucket/data.csv cannot be parsed. Skipping it."), 1)
}

func TestParseRecordsFailsOnUnsupportedWhenNotSkipping(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{"s3://bucket/data.csv": []byte("a,b\n")}}

	_, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		streamConfig(false, models.LocalProcessingConfig{}),
		models.RemoteFile{URI: "s3://bucket/data.csv"}, reader)
	require.Error(t, err)

	var parseErr *RecordParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "s3://bucket/data.csv", parseErr.Filename)
	assert.Equal(t, ErrorParsingRecord, parseErr.Code)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.closed))
}

func TestParseRecordsThroughAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("unstructured-api-key"))
		_, _ = w.Write([]byte(`[{"type": "ListItem", "text": "remote item"}]`))
	}))
	defer server.Close()

	reader := &fakeReader{files: map[string][]byte{"report.pdf": []byte("%PDF-1.4")}}
	records, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		streamConfig(true, models.APIProcessingConfig{APIURL: server.URL, APIKey: "secret"}),
		models.RemoteFile{URI: "report.pdf"}, reader)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "- remote item", records[0].Content)
}

func TestParseRecordsRejectsOtherFormats(t *testing.T) {
	reader := &fakeReader{}
	_, err := newParser(logger.NewTestLogger()).ParseRecords(context.Background(),
		models.StreamConfig{Name: "csv", Format: &models.GenericFormat{Type: "csv"}},
		models.RemoteFile{URI: "a.csv"}, reader)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Equal(t, int32(0), atomic.LoadInt32(&reader.opened))
}

func TestInferSchema(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{
		"a.docx": []byte("zip"),
		"b.csv":  []byte("x"),
	}}
	p := newParser(logger.NewTestLogger())
	want := map[string]any{
		"content":      map[string]any{"type": "string"},
		"document_key": map[string]any{"type": "string"},
	}

	schema, err := p.InferSchema(context.Background(), streamConfig(false, models.LocalProcessingConfig{}), models.RemoteFile{URI: "a.docx"}, reader)
	require.NoError(t, err)
	assert.Equal(t, want, schema)

	schema, err = p.InferSchema(context.Background(), streamConfig(true, models.LocalProcessingConfig{}), models.RemoteFile{URI: "b.csv"}, reader)
	require.NoError(t, err)
	assert.Equal(t, want, schema)

	_, err = p.InferSchema(context.Background(), streamConfig(false, models.LocalProcessingConfig{}), models.RemoteFile{URI: "b.csv"}, reader)
	var parseErr *RecordParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseAllKeepsOrderAndDropsSkipped(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{
		"1.md":   []byte("first"),
		"2.png":  []byte("\x89PNG"),
		"3.pdf":  []byte("%PDF"),
		"4.docx": []byte("zip"),
	}}
	files := []models.RemoteFile{{URI: "1.md"}, {URI: "2.png"}, {URI: "3.pdf"}, {URI: "4.docx"}}

	records, err := newParser(logger.NewTestLogger()).ParseAll(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}), files, reader)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1.md", records[0].DocumentKey)
	assert.Equal(t, "3.pdf", records[1].DocumentKey)
	assert.Equal(t, "## from docx\n\nbody", records[2].Content)
	assert.Equal(t, reader.opened, reader.closed)
}

func TestParseAllStopsOnError(t *testing.T) {
	reader := &fakeReader{files: map[string][]byte{"1.md": []byte("first"), "3.md": []byte("third")}}
	files := []models.RemoteFile{{URI: "1.md"}, {URI: "missing.md"}, {URI: "3.md"}}

	_, err := newParser(logger.NewTestLogger()).ParseAll(context.Background(),
		streamConfig(true, models.LocalProcessingConfig{}), files, reader)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.opened))
}

func TestCheckConfigLocal(t *testing.T) {
	ok, msg := newParser(logger.NewTestLogger()).CheckConfig(context.Background(), streamConfig(true, models.LocalProcessingConfig{}))
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestCheckConfigCloudRequiresHTTPS(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	p := newParser(logger.NewTestLogger(), WithDeploymentMode("CLOUD"))
	ok, msg := p.CheckConfig(context.Background(), streamConfig(true, models.APIProcessingConfig{APIURL: server.URL}))
	assert.False(t, ok)
	assert.Equal(t, "Base URL must start with https://", msg)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCheckConfigAPI(t *testing.T) {
	var status int32 = http.StatusOK
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		code := int(atomic.LoadInt32(&status))
		w.WriteHeader(code)
		if code == http.StatusOK {
			_, _ = w.Write([]byte(`[{"type": "Title", "text": "doc2md source connection test"}]`))
			return
		}
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	p := newParser(logger.NewTestLogger(), WithDeploymentMode("oss"))
	cfg := streamConfig(true, models.APIProcessingConfig{APIURL: server.URL})

	ok, msg := p.CheckConfig(context.Background(), cfg)
	assert.True(t, ok)
	assert.Empty(t, msg)

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	ok, msg = p.CheckConfig(context.Background(), cfg)
	assert.False(t, ok)
	assert.Contains(t, msg, "503")
	assert.Contains(t, msg, "overloaded")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCheckConfigInvalidFormat(t *testing.T) {
	ok, msg := newParser(logger.NewTestLogger()).CheckConfig(context.Background(),
		models.StreamConfig{Format: &models.GenericFormat{Type: "jsonl"}})
	assert.False(t, ok)
	assert.Contains(t, msg, "jsonl")
}

func TestExtractFormatValidates(t *testing.T) {
	_, err := ExtractFormat(streamConfig(true, models.APIProcessingConfig{APIURL: "ftp://parser"}))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	format, err := ExtractFormat(streamConfig(false, models.LocalProcessingConfig{}))
	require.NoError(t, err)
	assert.False(t, format.SkipUnprocessableFileTypes)

	_, err = ExtractFormat(models.StreamConfig{})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
