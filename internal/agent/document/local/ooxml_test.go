package local

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/agent/document/markdown"
	"github.com/feichai0017/doc2md/internal/models"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
            xmlns:m="http://schemas.openxmlformats.org/officeDocument/2006/math">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Quarterly Report</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Highlights</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Revenue </w:t></w:r><w:r><w:t>grew.</w:t></w:r></w:p>
    <w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>New office</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr><w:r><w:t>New hires</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Sales</w:t></w:r></w:p></w:tc></w:tr>
      <w:tr><w:tc><w:p><w:r><w:t>EMEA</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>42</w:t></w:r></w:p></w:tc></w:tr>
    </w:tbl>
    <w:p><m:oMathPara><m:oMath><m:r><m:t>E=mc^2</m:t></m:r></m:oMath></m:oMathPara></w:p>
    <w:p><w:r><w:t>Closing words</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestPartitionDOCX(t *testing.T) {
	pkg := buildPackage(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   docxBody,
	})

	elements, err := PartitionDOCX(context.Background(), bytes.NewReader(pkg))
	require.NoError(t, err)
	require.Len(t, elements, 8)

	assert.Equal(t, models.ElementTitle, elements[0].Type())
	assert.Equal(t, 1, elements[0].Int("metadata/category_depth", 0))
	assert.Equal(t, 2, elements[1].Int("metadata/category_depth", 0))
	assert.Equal(t, "Revenue grew.", elements[2].String("text", ""))
	assert.Equal(t, models.ElementListItem, elements[3].Type())
	assert.Equal(t, models.ElementListItem, elements[4].Type())
	assert.Equal(t, models.ElementTable, elements[5].Type())
	assert.Equal(t, "| Region | Sales |\n| EMEA | 42 |", elements[5].String("text", ""))
	assert.Equal(t, models.ElementFormula, elements[6].Type())
	assert.Equal(t, models.ElementNarrativeText, elements[7].Type())

	assert.Equal(t,
		"# Quarterly Report\n\n## Highlights\n\nRevenue grew.\n\n- New office\n\n- New hires\n\n"+
			"| Region | Sales |\n| EMEA | 42 |\n\n```\nE=mc^2\n```\n\nClosing words",
		markdown.Render(elements))
}

func TestPartitionDOCXMissingDocument(t *testing.T) {
	pkg := buildPackage(t, map[string]string{"[Content_Types].xml": `<Types/>`})

	_, err := PartitionDOCX(context.Background(), bytes.NewReader(pkg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestPartitionDOCXNotAZip(t *testing.T) {
	_, err := PartitionDOCX(context.Background(), bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)
}

func TestHeadingStyleLevel(t *testing.T) {
	assert.Equal(t, 1, headingStyleLevel("heading"))
	assert.Equal(t, 3, headingStyleLevel("heading3"))
	assert.Equal(t, 1, headingStyleLevel("headingchar"))
}

func slideXML(shapes string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>` + shapes + `</p:spTree></p:cSld>
</p:sld>`
}

func TestPartitionPPTX(t *testing.T) {
	slide1 := slideXML(`
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr><p:ph type="ctrTitle"/></p:nvPr></p:nvSpPr>
      <p:txBody><a:p><a:r><a:t>Launch Plan</a:t></a:r></a:p></p:txBody>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="3" name="Subtitle"/><p:cNvSpPr/><p:nvPr><p:ph type="subTitle" idx="1"/></p:nvPr></p:nvSpPr>
      <p:txBody><a:p><a:r><a:t>Q4</a:t></a:r></a:p></p:txBody>
    </p:sp>`)
	slide2 := slideXML(`
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:txBody><a:p><a:r><a:t>Milestones</a:t></a:r></a:p></p:txBody>
    </p:sp>
    <p:grpSp>
      <p:sp>
        <p:nvSpPr><p:cNvPr id="4" name="Body"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
        <p:txBody>
          <a:p><a:pPr><a:buChar char="•"/></a:pPr><a:r><a:t>Beta</a:t></a:r></a:p>
          <a:p><a:pPr lvl="1"/><a:r><a:t>Internal only</a:t></a:r></a:p>
          <a:p><a:r><a:t>See appendix</a:t></a:r></a:p>
          <a:p></a:p>
        </p:txBody>
      </p:sp>
    </p:grpSp>`)

	pkg := buildPackage(t, map[string]string{
		"ppt/presentation.xml":             `<p:presentation/>`,
		"ppt/slides/slide10.xml":           slideXML(""),
		"ppt/slides/slide2.xml":            slide2,
		"ppt/slides/slide1.xml":            slide1,
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	})

	elements, err := PartitionPPTX(context.Background(), bytes.NewReader(pkg))
	require.NoError(t, err)

	assert.Equal(t,
		"# Launch Plan\n\n## Q4\n\n# Milestones\n\n- Beta\n\n- Internal only\n\nSee appendix",
		markdown.Render(elements))
	assert.Equal(t, 1, elements[0].Int("metadata/page_number", 0))
	assert.Equal(t, 2, elements[2].Int("metadata/page_number", 0))
}

func TestSlideNumber(t *testing.T) {
	n, ok := slideNumber("ppt/slides/slide12.xml")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = slideNumber("ppt/slides/_rels/slide1.xml.rels")
	assert.False(t, ok)
	_, ok = slideNumber("ppt/slideLayouts/slideLayout1.xml")
	assert.False(t, ok)
}
