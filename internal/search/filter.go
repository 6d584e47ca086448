// Package search turns user-editable filter state into canonical document
// queries and keeps a paginated result set consistent with the newest one.
package search

import (
	"time"

	"github.com/docshelf/docshelf/internal/domain"
)

// PageSize is the number of documents requested per page.
const PageSize = 10

// Filter is the user-editable search state.
//
// Date pointers are replaced, never mutated, so a Filter copy can be shared
// with readers.
type Filter struct {
	Query      string            `json:"query" validate:"max=200"`
	Tags       string            `json:"tags" validate:"taglist"`
	DateFrom   *time.Time        `json:"date_from"`
	DateTo     *time.Time        `json:"date_to"`
	Group      string            `json:"group"`
	Visibility domain.Visibility `json:"visibility" validate:"omitempty,oneof=all public group private"`
	Owner      string            `json:"owner"`
	SortBy     domain.SortField  `json:"sort_by" validate:"required,oneof=created_at updated_at title average_rating"`
	SortOrder  domain.SortOrder  `json:"sort_order" validate:"required,oneof=asc desc"`
	Page       int               `json:"page" validate:"gte=1"`
}

// DefaultFilter returns the filter a fresh search view starts with.
func DefaultFilter() Filter {
	return Filter{
		SortBy:    domain.SortByCreatedAt,
		SortOrder: domain.SortDesc,
		Page:      1,
	}
}

// HasActiveFilters reports whether any optional filter besides the free-text
// query is set.
func (f Filter) HasActiveFilters() bool {
	return f.Tags != "" ||
		f.DateFrom != nil ||
		f.DateTo != nil ||
		f.Group != "" ||
		f.Visibility != "" ||
		f.Owner != ""
}

// Searchable reports whether the filter is specific enough to send to the
// server. A fully empty filter never issues a request.
func (f Filter) Searchable() bool {
	return f.Query != "" || f.HasActiveFilters()
}

// Patch is a partial update applied to a Filter.
type Patch func(*Filter)

// Apply returns a copy of f with the patches applied in order.
func (f Filter) Apply(patches ...Patch) Filter {
	for _, p := range patches {
		if p != nil {
			p(&f)
		}
	}
	return f
}

// WithQuery sets the free-text query.
func WithQuery(q string) Patch { return func(f *Filter) { f.Query = q } }

// WithTags sets the comma separated tag list.
func WithTags(tags string) Patch { return func(f *Filter) { f.Tags = tags } }

// WithDateFrom sets the lower date bound. Nil clears it.
func WithDateFrom(t *time.Time) Patch { return func(f *Filter) { f.DateFrom = cloneTime(t) } }

// WithDateTo sets the upper date bound. Nil clears it.
func WithDateTo(t *time.Time) Patch { return func(f *Filter) { f.DateTo = cloneTime(t) } }

// WithGroup filters by owner group.
func WithGroup(g string) Patch { return func(f *Filter) { f.Group = g } }

// WithVisibility filters by visibility.
func WithVisibility(v domain.Visibility) Patch { return func(f *Filter) { f.Visibility = v } }

// WithOwner filters by owner name.
func WithOwner(o string) Patch { return func(f *Filter) { f.Owner = o } }

// WithSort sets the sort key and direction.
func WithSort(by domain.SortField, order domain.SortOrder) Patch {
	return func(f *Filter) {
		f.SortBy = by
		f.SortOrder = order
	}
}

// WithPage moves to page n. Pages below 1 are treated as 1.
func WithPage(n int) Patch {
	return func(f *Filter) { f.Page = max(n, 1) }
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
