// Package markdown turns document elements into Markdown text.
package markdown

import (
	"strings"

	"github.com/feichai0017/doc2md/internal/models"
)

const elementSeparator = "\n\n"

// Render renders every element in order, separated by a blank line.
func Render(elements []models.Element) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		parts = append(parts, RenderElement(el))
	}
	return strings.Join(parts, elementSeparator)
}

// RenderElement renders a single element according to its type.
func RenderElement(el models.Element) string {
	switch el.Type() {
	case models.ElementTitle:
		return heading(el.Int("metadata/category_depth", 1)) + " " + el.String("text", "")
	case models.ElementListItem:
		return "- " + el.String("text", "")
	case models.ElementFormula:
		return "```\n" + el.String("text", "") + "\n```"
	default:
		return el.String("text", "")
	}
}

// heading treats a zero depth like a missing one; negative depths produce no marker.
func heading(depth int) string {
	if depth == 0 {
		depth = 1
	}
	if depth < 0 {
		return ""
	}
	return strings.Repeat("#", depth)
}
