package filetype

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

func newDetector() *Detector {
	return NewDetector(logger.NewTestLogger())
}

func TestDetectPrefersMIMEHint(t *testing.T) {
	// content and name both disagree with the hint; the hint wins
	content := []byte("%PDF-1.4 not really")
	cases := map[string]models.FileKind{
		"text/markdown":   models.FileKindMarkdown,
		"application/pdf": models.FileKindPDF,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   models.FileKindDOCX,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation": models.FileKindPPTX,
	}
	for mime, want := range cases {
		t.Run(mime, func(t *testing.T) {
			kind, err := newDetector().Detect(bytes.NewReader(content), models.RemoteFile{
				URI:      "s3://bucket/notes.txt",
				MimeType: mime,
			})
			require.NoError(t, err)
			assert.Equal(t, want, kind)
		})
	}
}

func TestDetectIgnoresUnknownMIMEHint(t *testing.T) {
	kind, err := newDetector().Detect(bytes.NewReader(nil), models.RemoteFile{
		URI:      "reports/q3.PDF",
		MimeType: "application/x-custom",
	})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindPDF, kind)
}

func TestDetectFromFilename(t *testing.T) {
	cases := map[string]models.FileKind{
		"docs/readme.md":                     models.FileKindMarkdown,
		"https://host/deck.pptx?version=3":   models.FileKindPPTX,
		"gs://bucket/contract.docx#fragment": models.FileKindDOCX,
		"archive/data.csv":                   models.FileKindCSV,
		"no-extension":                       models.FileKindUnknown,
	}
	for uri, want := range cases {
		assert.Equal(t, want, KindFromFilename(uri), uri)
	}
}

func TestDetectFromContentRewinds(t *testing.T) {
	content := []byte("%PDF-1.7\n%binary\n1 0 obj\n<<>>\nendobj\n")
	r := bytes.NewReader(content)

	kind, err := newDetector().Detect(r, models.RemoteFile{URI: "s3://bucket/blob"})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindPDF, kind)

	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestDetectDOCXFromContent(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"word/document.xml", "[Content_Types].xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	kind, err := newDetector().Detect(bytes.NewReader(buf.Bytes()), models.RemoteFile{URI: "blob"})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindDOCX, kind)
}

func TestDetectPlainTextContent(t *testing.T) {
	kind, err := newDetector().Detect(bytes.NewReader([]byte("# heading\n\nplain words")), models.RemoteFile{URI: "blob"})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindText, kind)
}

func TestDetectDoesNotUseLocalFileName(t *testing.T) {
	// the local file has a .md name, but the remote URI has none
	path := filepath.Join(t.TempDir(), "local.md")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.5\n"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	kind, err := newDetector().Detect(f, models.RemoteFile{URI: "s3://bucket/object"})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindPDF, kind)
}

func TestSupportedKinds(t *testing.T) {
	for _, k := range []models.FileKind{models.FileKindMarkdown, models.FileKindPDF, models.FileKindDOCX, models.FileKindPPTX} {
		assert.True(t, IsSupported(k), k)
	}
	assert.False(t, IsSupported(models.FileKindText))
	assert.False(t, IsSupported(models.FileKindUnknown))
	assert.Len(t, SupportedKinds(), 4)
}

func TestMIMEForKind(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEForKind(models.FileKindPDF))
	assert.Equal(t, "text/markdown", MIMEForKind(models.FileKindMarkdown))
	assert.Equal(t, "application/octet-stream", MIMEForKind(models.FileKindZIP))
}

func TestKindFromMIMEIgnoresParameters(t *testing.T) {
	kind, ok := KindFromMIME("Text/Markdown; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, models.FileKindMarkdown, kind)
}
