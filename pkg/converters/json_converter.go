package converters

import (
	"bytes"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/feichai0017/doc2md/internal/models"
)

const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

// DocumentConverter turns parsed records into the stored result document.
type DocumentConverter interface {
	Convert(records []models.ParsedRecord) (*ProcessedDocument, error)
}

type ProcessedDocument struct {
	TaskID      string           `json:"taskId"`
	Status      string           `json:"status"`
	Records     []RecordContent  `json:"records"`
	Metadata    DocumentMetadata `json:"metadata"`
	ProcessedAt time.Time        `json:"processedAt"`
}

type RecordContent struct {
	DocumentKey string `json:"documentKey"`
	Content     string `json:"content"`
}

type DocumentMetadata struct {
	FileName     string   `json:"fileName"`
	FileType     string   `json:"fileType,omitempty"`
	FileSize     int64    `json:"fileSize"`
	Sections     []string `json:"sections"`
	ProcessingMs int64    `json:"processingMs"`
}

// Markdown concatenates the record contents.
func (d *ProcessedDocument) Markdown() string {
	parts := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

type JSONConverter struct {
	md goldmark.Markdown
}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{md: goldmark.New()}
}

// Convert builds a result document. No records means the file was skipped.
func (c *JSONConverter) Convert(records []models.ParsedRecord) (*ProcessedDocument, error) {
	doc := &ProcessedDocument{
		Status:      StatusCompleted,
		ProcessedAt: time.Now(),
		Records:     make([]RecordContent, 0, len(records)),
		Metadata: DocumentMetadata{
			Sections: make([]string, 0),
		},
	}
	if len(records) == 0 {
		doc.Status = StatusSkipped
		return doc, nil
	}

	for _, r := range records {
		doc.Records = append(doc.Records, RecordContent{
			DocumentKey: r.DocumentKey,
			Content:     r.Content,
		})
		doc.Metadata.Sections = append(doc.Metadata.Sections, c.Headings(r.Content)...)
	}
	doc.Metadata.FileName = records[0].DocumentKey

	return doc, nil
}

// Headings lists the text of every level 1 and 2 heading in source order.
func (c *JSONConverter) Headings(markdown string) []string {
	source := []byte(markdown)
	root := c.md.Parser().Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level <= 2 {
			headings = append(headings, nodeText(h, source))
		}
		return ast.WalkSkipChildren, nil
	})
	return headings
}

func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(nodeText(child, source))
	}
	return strings.TrimSpace(buf.String())
}
