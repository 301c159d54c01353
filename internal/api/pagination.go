package api

import (
	"net/http"
	"strconv"

	"github.com/akmatori/alertsieve/internal/executor"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// ParsePagination extracts page and per_page (alias limit) from the request.
// Defaults: page=1, per_page=50. Maximum per_page is 200.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{Page: defaultPage, PerPage: defaultPerPage}
	q := r.URL.Query()

	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}

	perPage := q.Get("per_page")
	if perPage == "" {
		perPage = q.Get("limit")
	}
	if n, err := strconv.Atoi(perPage); err == nil && n > 0 {
		p.PerPage = min(n, maxPerPage)
	}

	return p
}

// Offset returns the number of entries skipped before the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Apply sets the page window on an audit filter
func (p PaginationParams) Apply(f executor.Filter) executor.Filter {
	f.Limit = p.PerPage
	f.Offset = p.Offset()
	return f
}
