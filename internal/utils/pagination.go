// Package utils holds small query-string helpers for the HTTP handlers.
package utils

import (
	"strconv"
	"strings"
)

// Page is a bounded 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page and size query values. Missing or malformed values
// fall back to page 1 and defSize; size is clamped to [1, maxSize].
func ParsePage(page, size string, defSize, maxSize int) Page {
	p := Page{
		Number: AtoiDefault(page, 1),
		Size:   AtoiDefault(size, defSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PositiveInt parses s as an integer greater than zero, as used for slide
// and narration path parameters.
func PositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// BoolDefault parses s with strconv.ParseBool, returning def when s is empty
// or invalid. The second result reports whether s was a valid boolean.
func BoolDefault(s string, def bool) (bool, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def, false
	}
	return b, true
}
