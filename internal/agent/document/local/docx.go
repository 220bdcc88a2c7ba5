package local

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/feichai0017/doc2md/internal/models"
)

const docxDocumentPath = "word/document.xml"

// PartitionDOCX walks the document body in order, emitting one element per
// non-empty paragraph and one Table element per table.
func PartitionDOCX(ctx context.Context, r io.Reader) ([]models.Element, error) {
	data, err := readZipEntry(r, docxDocumentPath)
	if err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	var elements []models.Element
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", docxDocumentPath, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "p":
			var para docxPara
			if err := decoder.DecodeElement(&para, &start); err != nil {
				return nil, fmt.Errorf("failed to parse paragraph: %w", err)
			}
			if el, ok := para.element(); ok {
				elements = append(elements, el)
			}
		case "tbl":
			var tbl docxTable
			if err := decoder.DecodeElement(&tbl, &start); err != nil {
				return nil, fmt.Errorf("failed to parse table: %w", err)
			}
			if text := tbl.text(); text != "" {
				elements = append(elements, models.NewElement(models.ElementTable, text, 0, 0))
			}
		}
	}

	return elements, nil
}

// docxPara collects what the classifier needs from a w:p element.
type docxPara struct {
	Style    string
	Numbered bool
	Text     string
	// MathOnly is set when every character of Text came from Office Math.
	MathOnly bool
}

func (p *docxPara) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var (
		stack    []string
		text     strings.Builder
		hasPlain bool
		hasMath  bool
	)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			switch t.Name.Local {
			case "pStyle":
				if within(stack, "pPr") {
					p.Style = attrValue(t, "val")
				}
			case "numPr":
				if within(stack, "pPr") {
					p.Numbered = true
				}
			case "tab":
				if !within(stack, "pPr") {
					text.WriteString("\t")
				}
			case "br":
				text.WriteString("\n")
			}
		case xml.EndElement:
			if len(stack) == 0 {
				p.Text = strings.TrimSpace(text.String())
				p.MathOnly = hasMath && !hasPlain
				return nil
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 || stack[len(stack)-1] != "t" {
				continue
			}
			text.Write(t)
			if within(stack, "oMath") {
				hasMath = true
			} else if strings.TrimSpace(string(t)) != "" {
				hasPlain = true
			}
		}
	}
}

func (p docxPara) element() (models.Element, bool) {
	if p.Text == "" {
		return nil, false
	}
	if p.MathOnly {
		return models.NewElement(models.ElementFormula, p.Text, 0, 0), true
	}

	style := strings.ToLower(p.Style)
	switch {
	case style == "title":
		return models.NewElement(models.ElementTitle, p.Text, 1, 0), true
	case style == "subtitle":
		return models.NewElement(models.ElementTitle, p.Text, 2, 0), true
	case strings.HasPrefix(style, "heading"):
		return models.NewElement(models.ElementTitle, p.Text, headingStyleLevel(style), 0), true
	case p.Numbered || strings.Contains(style, "list"):
		return models.NewElement(models.ElementListItem, p.Text, 0, 0), true
	default:
		return models.NewElement(models.ElementNarrativeText, p.Text, 0, 0), true
	}
}

// headingStyleLevel reads the level from style IDs like "heading2". A bare
// "heading" is level 1.
func headingStyleLevel(style string) int {
	level := 0
	for _, r := range strings.TrimPrefix(style, "heading") {
		if r < '0' || r > '9' {
			break
		}
		level = level*10 + int(r-'0')
	}
	if level == 0 {
		return 1
	}
	return level
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

// text renders rows as pipe separated lines.
func (t docxTable) text() string {
	var lines []string
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row.Cells))
		hasText := false
		for _, cell := range row.Cells {
			parts := make([]string, 0, len(cell.Paras))
			for _, p := range cell.Paras {
				if p.Text != "" {
					parts = append(parts, p.Text)
				}
			}
			value := strings.Join(parts, " ")
			hasText = hasText || value != ""
			cells = append(cells, value)
		}
		if hasText {
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

func within(stack []string, name string) bool {
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// readZipEntry returns the content of one file inside an OOXML package.
func readZipEntry(r io.Reader, name string) ([]byte, error) {
	zr, err := openZip(r)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name == name {
			return readZipFile(f)
		}
	}
	return nil, fmt.Errorf("%s not found in package", name)
}

func openZip(r io.Reader) (*zip.Reader, error) {
	ra, size, err := readerAt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}
