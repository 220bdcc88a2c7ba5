package validator

import (
	"bytes"
	"io"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

func TestValidateAcceptsMarkdown(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), &ValidatorConfig{MaxFileSize: 1024})
	r := bytes.NewReader([]byte("# Title"))

	result, err := v.Validate(r, "notes.md", 7, "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, models.FileKindMarkdown, result.FileInfo.Kind)
	assert.Equal(t, ".md", result.FileInfo.Extension)
	assert.Len(t, result.FileInfo.Hash, 64)

	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestValidateSize(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), &ValidatorConfig{MaxFileSize: 4})

	result, err := v.Validate(bytes.NewReader([]byte("too long")), "a.md", 8, "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeFileTooLarge, result.Errors[0].Code)

	result, err = v.Validate(bytes.NewReader(nil), "a.md", 0, "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, CodeEmptyFile, result.Errors[0].Code)
}

func TestValidateUnsupportedKind(t *testing.T) {
	strict := NewDocumentValidator(logger.NewNop(), &ValidatorConfig{MaxFileSize: 1024})
	result, err := strict.Validate(bytes.NewReader([]byte("<html></html>")), "page.html", 13, "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, CodeUnsupportedType, result.Errors[0].Code)
	assert.Equal(t, "File type html is not supported", result.Error())

	lenient := NewDocumentValidator(logger.NewNop(), &ValidatorConfig{MaxFileSize: 1024, AllowUnsupported: true})
	result, err = lenient.Validate(bytes.NewReader([]byte("<html></html>")), "page.html", 13, "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, models.FileKindHTML, result.FileInfo.Kind)
}

func TestValidateUsesMimeHint(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), nil)
	result, err := v.Validate(bytes.NewReader([]byte("x")), "upload", 1, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, models.FileKindPDF, result.FileInfo.Kind)
}

func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	return form.File["file"][0]
}

func TestValidateFilesKeepsOrder(t *testing.T) {
	v := NewDocumentValidator(logger.NewNop(), &ValidatorConfig{MaxFileSize: 1024})

	results, err := v.ValidateFiles([]*multipart.FileHeader{
		uploadHeader(t, "a.md", []byte("# A")),
		uploadHeader(t, "page.html", []byte("<html></html>")),
		uploadHeader(t, "c.md", []byte("# C")),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a.md", results[0].FileInfo.Filename)
	assert.True(t, results[0].IsValid)
	assert.False(t, results[1].IsValid)
	assert.Equal(t, CodeUnsupportedType, results[1].Errors[0].Code)
	assert.Equal(t, "c.md", results[2].FileInfo.Filename)
	assert.True(t, results[2].IsValid)
}
