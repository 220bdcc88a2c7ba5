package local

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/feichai0017/doc2md/internal/models"
)

const slidePrefix = "ppt/slides/slide"

// PartitionPPTX emits the text of every slide in slide number order. Title
// placeholders become titles and bulleted or indented paragraphs list items.
func PartitionPPTX(ctx context.Context, r io.Reader) ([]models.Element, error) {
	zr, err := openZip(r)
	if err != nil {
		return nil, err
	}

	type slideFile struct {
		num  int
		data []byte
	}
	var slides []slideFile
	for _, f := range zr.File {
		num, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		slides = append(slides, slideFile{num: num, data: data})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var elements []models.Element
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slideElements, err := partitionSlide(s.data, s.num)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", s.num, err)
		}
		elements = append(elements, slideElements...)
	}

	return elements, nil
}

// slideNumber extracts N from "ppt/slides/slideN.xml".
func slideNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, slidePrefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, slidePrefix), ".xml"))
	if err != nil || num <= 0 {
		return 0, false
	}
	return num, true
}

type pptxShape struct {
	Placeholder *pptxPlaceholder `xml:"nvSpPr>nvPr>ph"`
	Paras       []pptxPara       `xml:"txBody>p"`
}

type pptxPlaceholder struct {
	Type string `xml:"type,attr"`
}

type pptxPara struct {
	Props *pptxParaProps `xml:"pPr"`
	Runs  []pptxRun      `xml:"r"`
	// text fields such as slide numbers and dates
	Fields []pptxRun `xml:"fld"`
}

type pptxParaProps struct {
	Level     int       `xml:"lvl,attr"`
	BuChar    *struct{} `xml:"buChar"`
	BuAutoNum *struct{} `xml:"buAutoNum"`
}

type pptxRun struct {
	Text string `xml:"t"`
}

func (p pptxPara) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		b.WriteString(run.Text)
	}
	for _, f := range p.Fields {
		b.WriteString(f.Text)
	}
	return strings.TrimSpace(b.String())
}

func (p pptxPara) bulleted() bool {
	return p.Props != nil && (p.Props.BuChar != nil || p.Props.BuAutoNum != nil || p.Props.Level > 0)
}

// partitionSlide reads every p:sp shape in document order, including shapes
// nested in groups.
func partitionSlide(data []byte, num int) ([]models.Element, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var elements []models.Element
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return elements, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sp" {
			continue
		}
		var shape pptxShape
		if err := decoder.DecodeElement(&shape, &start); err != nil {
			return nil, err
		}
		elements = append(elements, shape.elements(num)...)
	}
}

func (s pptxShape) elements(num int) []models.Element {
	titleDepth := 0
	if s.Placeholder != nil {
		switch s.Placeholder.Type {
		case "title", "ctrTitle":
			titleDepth = 1
		case "subTitle":
			titleDepth = 2
		}
	}

	var elements []models.Element
	for _, para := range s.Paras {
		text := para.text()
		if text == "" {
			continue
		}
		switch {
		case titleDepth > 0:
			elements = append(elements, models.NewElement(models.ElementTitle, text, titleDepth, num))
		case para.bulleted():
			elements = append(elements, models.NewElement(models.ElementListItem, text, 0, num))
		default:
			elements = append(elements, models.NewElement(models.ElementNarrativeText, text, 0, num))
		}
	}
	return elements
}
