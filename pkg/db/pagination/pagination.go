package pagination

import (
	"errors"
	"math"
)

const DefaultPageSize = 15

var ErrInvalidPage = errors.New("invalid_page")

// Page is a 1-based page request.
type Page struct {
	Number int `form:"page,default=1"`
	Size   int `form:"-"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// New validates a page number and fills the default size.
func New(number, size int) (Page, error) {
	if number < 1 {
		return Page{}, ErrInvalidPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return Page{Number: number, Size: size}, nil
}

// Offset saturates at math.MaxInt for page numbers too large to multiply out.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	limit := p.Limit()
	if p.Number-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (p.Number - 1) * limit
}

// Beyond reports whether the page starts after the last of totalItems rows.
func (p Page) Beyond(totalItems int64) bool {
	if totalItems <= 0 {
		return true
	}
	return int64(p.Number) > int64(p.Info(totalItems).TotalPages)
}

func (p Page) Limit() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	return p.Size
}

// Info describes where the page sits within totalItems rows. Pages past the
// end are valid and simply hold no rows.
func (p Page) Info(totalItems int64) PageInfo {
	limit := p.Limit()
	totalPages := 0
	if totalItems > 0 {
		totalPages = int((totalItems + int64(limit) - 1) / int64(limit))
	}
	return PageInfo{
		Page:       p.Number,
		PageSize:   limit,
		TotalItems: totalItems,
		TotalPages: totalPages,
		HasMore:    p.Number < totalPages,
	}
}
