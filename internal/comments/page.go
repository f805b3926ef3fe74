package comments

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Window is a 1-based page of top-level comments.
type Window struct {
	Page  int
	Limit int
}

// ParseWindow reads page and limit query values. Missing, non-numeric or
// non-positive values fall back to the defaults instead of failing.
func ParseWindow(page, limit string) Window {
	return Window{
		Page:  parsePositive(page, DefaultPage),
		Limit: parsePositive(limit, DefaultLimit),
	}
}

func (w Window) normalize() Window {
	if w.Page <= 0 {
		w.Page = DefaultPage
	}
	if w.Limit <= 0 {
		w.Limit = DefaultLimit
	}
	return w
}

// Skip is the number of rows before the window, saturating instead of overflowing.
func (w Window) Skip() int {
	w = w.normalize()
	if w.Page-1 > math.MaxInt/w.Limit {
		return math.MaxInt
	}
	return (w.Page - 1) * w.Limit
}

type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalComments int  `json:"totalComments"`
	HasNext       bool `json:"hasNext"`
	HasPrev       bool `json:"hasPrev"`
}

func newPagination(w Window, total int) Pagination {
	w = w.normalize()
	totalPages := total / w.Limit
	if total%w.Limit != 0 {
		totalPages++
	}
	return Pagination{
		CurrentPage:   w.Page,
		TotalPages:    totalPages,
		TotalComments: total,
		HasNext:       w.Page < totalPages,
		HasPrev:       w.Page > 1,
	}
}

func parsePositive(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
