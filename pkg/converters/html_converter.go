package converters

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLConverter renders Markdown results for the download preview.
type HTMLConverter struct {
	md goldmark.Markdown
}

func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (c *HTMLConverter) Convert(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}
