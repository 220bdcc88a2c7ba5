package filetype

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// mimeToKind maps MIME types to kinds. Used both for the caller's MIME hint
// and for the result of content sniffing.
var mimeToKind = map[string]models.FileKind{
	"text/markdown":      models.FileKindMarkdown,
	"text/x-markdown":    models.FileKindMarkdown,
	"application/pdf":    models.FileKindPDF,
	"application/x-pdf":  models.FileKindPDF,
	"text/plain":         models.FileKindText,
	"text/html":          models.FileKindHTML,
	"text/csv":           models.FileKindCSV,
	"application/json":   models.FileKindJSON,
	"application/xml":    models.FileKindXML,
	"text/xml":           models.FileKindXML,
	"application/msword": models.FileKindDOC,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   models.FileKindDOCX,
	"application/vnd.ms-powerpoint":                                             models.FileKindPPT,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": models.FileKindPPTX,
	"application/vnd.ms-excel":                                                  models.FileKindXLS,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         models.FileKindXLSX,
	"application/rtf":                         models.FileKindRTF,
	"text/rtf":                                models.FileKindRTF,
	"application/epub+zip":                    models.FileKindEPUB,
	"message/rfc822":                          models.FileKindEML,
	"application/vnd.ms-outlook":              models.FileKindMSG,
	"application/vnd.oasis.opendocument.text": models.FileKindODT,
	"image/jpeg":                              models.FileKindJPG,
	"image/png":                               models.FileKindPNG,
	"image/tiff":                              models.FileKindTIFF,
	"application/zip":                         models.FileKindZIP,
}

var extToKind = map[string]models.FileKind{
	".md":       models.FileKindMarkdown,
	".markdown": models.FileKindMarkdown,
	".pdf":      models.FileKindPDF,
	".docx":     models.FileKindDOCX,
	".pptx":     models.FileKindPPTX,
	".txt":      models.FileKindText,
	".text":     models.FileKindText,
	".log":      models.FileKindText,
	".html":     models.FileKindHTML,
	".htm":      models.FileKindHTML,
	".csv":      models.FileKindCSV,
	".json":     models.FileKindJSON,
	".xml":      models.FileKindXML,
	".doc":      models.FileKindDOC,
	".ppt":      models.FileKindPPT,
	".xls":      models.FileKindXLS,
	".xlsx":     models.FileKindXLSX,
	".rtf":      models.FileKindRTF,
	".epub":     models.FileKindEPUB,
	".eml":      models.FileKindEML,
	".msg":      models.FileKindMSG,
	".odt":      models.FileKindODT,
	".jpg":      models.FileKindJPG,
	".jpeg":     models.FileKindJPG,
	".png":      models.FileKindPNG,
	".tif":      models.FileKindTIFF,
	".tiff":     models.FileKindTIFF,
	".zip":      models.FileKindZIP,
}

// kindToMIME is the content type sent with a file part to the parsing API.
var kindToMIME = map[models.FileKind]string{
	models.FileKindMarkdown: "text/markdown",
	models.FileKindPDF:      "application/pdf",
	models.FileKindDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	models.FileKindPPTX:     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	models.FileKindText:     "text/plain",
	models.FileKindHTML:     "text/html",
}

var supported = []models.FileKind{
	models.FileKindMarkdown,
	models.FileKindPDF,
	models.FileKindDOCX,
	models.FileKindPPTX,
}

// SupportedKinds lists the kinds the parser can turn into Markdown.
func SupportedKinds() []models.FileKind {
	out := make([]models.FileKind, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether kind is one of SupportedKinds.
func IsSupported(kind models.FileKind) bool {
	for _, k := range supported {
		if k == kind {
			return true
		}
	}
	return false
}

// KindFromMIME looks a MIME type up in the static table. Parameters such as
// charset are ignored.
func KindFromMIME(mimeType string) (models.FileKind, bool) {
	base, _, _ := strings.Cut(mimeType, ";")
	kind, ok := mimeToKind[strings.ToLower(strings.TrimSpace(base))]
	return kind, ok
}

// KindFromFilename derives a kind from the extension of a path or URI.
func KindFromFilename(name string) models.FileKind {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if kind, ok := extToKind[strings.ToLower(path.Ext(name))]; ok {
		return kind
	}
	return models.FileKindUnknown
}

// MIMEForKind returns the content type used when uploading a file of kind.
func MIMEForKind(kind models.FileKind) string {
	if m, ok := kindToMIME[kind]; ok {
		return m
	}
	return "application/octet-stream"
}

// Detector resolves the kind of a file from its MIME hint, its name and finally its content.
type Detector struct {
	logger logger.Logger
}

func NewDetector(log logger.Logger) *Detector {
	return &Detector{logger: log}
}

// Detect returns the kind of file. When content sniffing is needed the handle
// is read from its current position and rewound to the start afterwards.
func (d *Detector) Detect(handle io.ReadSeeker, file models.RemoteFile) (models.FileKind, error) {
	if file.MimeType != "" {
		if kind, ok := KindFromMIME(file.MimeType); ok {
			return kind, nil
		}
	}

	if kind := KindFromFilename(file.URI); kind != models.FileKindUnknown {
		return kind, nil
	}

	kind, err := d.sniff(anonymous{handle})
	if err != nil {
		return models.FileKindUnknown, fmt.Errorf("failed to sniff %s: %w", file.URI, err)
	}
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return models.FileKindUnknown, fmt.Errorf("failed to rewind %s: %w", file.URI, err)
	}

	d.logger.Debug("Detected file type from content",
		logger.String("uri", file.URI),
		logger.String("kind", string(kind)),
	)
	return kind, nil
}

func (d *Detector) sniff(r io.Reader) (models.FileKind, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return models.FileKindUnknown, err
	}
	for m := mt; m != nil; m = m.Parent() {
		if kind, ok := KindFromMIME(m.String()); ok {
			return kind, nil
		}
	}
	return models.FileKindUnknown, nil
}

// anonymous hides everything but Read, so an *os.File handle can't leak its
// local path (and modification time) into detection of a remote object.
type anonymous struct {
	r io.Reader
}

func (a anonymous) Read(p []byte) (int, error) { return a.r.Read(p) }
