package utils

import "strconv"

// PostsPerPage is the fixed feed page size.
const PostsPerPage = 10

// Page describes one window into an ordered listing. Page numbers are
// 1-based; a request for a page beyond the last one is clamped to the last
// page rather than treated as an error, so redirect targets built by the
// mutation handlers always land on a valid page.
type Page struct {
	Number   int
	Size     int
	Total    int64
	NumPages int
}

// Paginate parses a raw page query value against a total record count.
// Absent or garbage input falls back to page 1.
func Paginate(pageStr string, total int64, size int) Page {
	if size <= 0 {
		size = PostsPerPage
	}
	numPages := int((total + int64(size) - 1) / int64(size))
	if numPages < 1 {
		numPages = 1
	}
	number := 1
	if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
		number = n
	}
	if number > numPages {
		number = numPages
	}
	return Page{Number: number, Size: size, Total: total, NumPages: numPages}
}

// Offset returns the SQL offset for this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Number < p.NumPages }

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// NextNumber returns the following page number (valid only when HasNext).
func (p Page) NextNumber() int { return p.Number + 1 }

// PrevNumber returns the preceding page number (valid only when HasPrev).
func (p Page) PrevNumber() int { return p.Number - 1 }
