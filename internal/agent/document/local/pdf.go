package local

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// bulletPrefixes mark a line as a list item.
var bulletPrefixes = []string{"• ", "◦ ", "▪ ", "‣ ", "- ", "* ", "– "}

type PDFPartitioner struct {
	logger logger.Logger
}

func NewPDFPartitioner(log logger.Logger) *PDFPartitioner {
	return &PDFPartitioner{
		logger: log,
	}
}

// Partition extracts the text of every page in order. Pages whose text can't
// be extracted are skipped.
func (p *PDFPartitioner) Partition(ctx context.Context, r io.Reader) ([]models.Element, error) {
	ra, size, err := readerAt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	pdfReader, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var elements []models.Element
	numPages := pdfReader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("Failed to get text from page",
				logger.Int("page", i),
				logger.Error(err),
			)
			continue
		}

		elements = append(elements, pageElements(text, i)...)
	}

	return elements, nil
}

// pageElements classifies the lines of one page. Consecutive body lines are
// joined into a single NarrativeText; blank lines, headings and list items end it.
func pageElements(text string, page int) []models.Element {
	var (
		elements  []models.Element
		paragraph []string
	)
	flush := func() {
		if len(paragraph) > 0 {
			elements = append(elements, models.NewElement(models.ElementNarrativeText, strings.Join(paragraph, " "), 0, page))
			paragraph = paragraph[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case isListItem(line):
			flush()
			elements = append(elements, models.NewElement(models.ElementListItem, trimBullet(line), 0, page))
		case isLikelyHeading(line):
			flush()
			elements = append(elements, models.NewElement(models.ElementTitle, line, headingLevel(line), page))
		default:
			paragraph = append(paragraph, line)
		}
	}
	flush()

	return elements
}

func isListItem(line string) bool {
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func trimBullet(line string) string {
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return line
}

// isLikelyHeading accepts short all-caps lines, numbered sections ("2. Scope",
// "3.1 Terms") and lines starting with chapter, section, part or appendix.
func isLikelyHeading(line string) bool {
	if len(line) > 120 || strings.HasSuffix(line, ".") {
		return false
	}
	if hasLetter(line) && len(line) > 2 && len(line) < 100 && line == strings.ToUpper(line) {
		return true
	}
	if sectionNumber(line) {
		return true
	}
	lower := strings.ToLower(line)
	for _, prefix := range []string{"chapter ", "section ", "part ", "appendix "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// sectionNumber reports whether line starts with a dotted number followed by text.
func sectionNumber(line string) bool {
	number, rest, ok := strings.Cut(line, " ")
	if !ok || strings.TrimSpace(rest) == "" || !strings.Contains(number, ".") {
		return false
	}
	for _, part := range strings.Split(strings.TrimSuffix(number, "."), ".") {
		if !isDigits(part) {
			return false
		}
	}
	return true
}

// headingLevel is the number of numbering segments ("3.1.2" is 3); unnumbered
// all-caps headings are level 1 and anything else level 2.
func headingLevel(line string) int {
	if sectionNumber(line) {
		number, _, _ := strings.Cut(line, " ")
		return len(strings.Split(strings.TrimSuffix(number, "."), "."))
	}
	if line == strings.ToUpper(line) {
		return 1
	}
	return 2
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
