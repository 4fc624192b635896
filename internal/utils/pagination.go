package utils

import "strconv" // Query parsing

// Pagination defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a normalized page request
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// NewPage clamps page and size to valid values
func NewPage(page, size int) Page {
	if page < 1 {
		page = 1 // Default page
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize // Default page size
	}
	return Page{Number: page, Size: size}
}

// ParsePage reads page and page_size query values, ignoring malformed input
func ParsePage(page, size string) Page {
	p, _ := strconv.Atoi(page)
	s, _ := strconv.Atoi(size)
	return NewPage(p, s)
}

// Offset is the number of rows to skip
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages returns the number of pages needed for total rows
func (p Page) TotalPages(total int64) int {
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}
