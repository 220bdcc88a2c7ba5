package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Element types understood by the Markdown renderer. Anything else is rendered as plain text.
const (
	ElementTitle         = "Title"
	ElementListItem      = "ListItem"
	ElementFormula       = "Formula"
	ElementNarrativeText = "NarrativeText"
	ElementTable         = "Table"
)

// Element is a single document element as produced by a partitioner or
// returned by the remote parsing API.
type Element map[string]any

// NewElement builds an element of the given type. depth and page are only
// recorded in metadata when positive.
func NewElement(elementType, text string, depth, page int) Element {
	el := Element{
		"type": elementType,
		"text": text,
	}
	meta := map[string]any{}
	if depth > 0 {
		meta["category_depth"] = depth
	}
	if page > 0 {
		meta["page_number"] = page
	}
	if len(meta) > 0 {
		el["metadata"] = meta
	}
	return el
}

// Lookup walks a slash separated path ("metadata/category_depth") and
// reports whether every segment was present.
func (e Element) Lookup(path string) (any, bool) {
	var cur any = map[string]any(e)
	for _, key := range strings.Split(path, "/") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path formatted as text, or def when missing or null.
func (e Element) String(path, def string) string {
	v, ok := e.Lookup(path)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the integer at path, or def when missing, null or not numeric.
func (e Element) Int(path string, def int) int {
	v, ok := e.Lookup(path)
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// Type is shorthand for the element's type field.
func (e Element) Type() string {
	return e.String("type", "")
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Element:
		return m, true
	}
	return nil, false
}
