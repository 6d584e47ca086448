package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshelf/docshelf/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 23, 59, 59, 999_000_000, time.FixedZone("CET", 3600))

	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "defaults keep the always-present params",
			filter: DefaultFilter(),
			want:   "sort_by=created_at&sort_order=desc&page=1&limit=10",
		},
		{
			name:   "query and tags",
			filter: DefaultFilter().Apply(WithQuery("react"), WithTags("tutorial")),
			want:   "query=react&tags=tutorial&sort_by=created_at&sort_order=desc&page=1&limit=10",
		},
		{
			name: "every field in fixed order",
			filter: DefaultFilter().Apply(
				WithOwner("bob"),
				WithVisibility(domain.VisibilityGroup),
				WithGroup("eng"),
				WithDateTo(&to),
				WithDateFrom(&from),
				WithTags("go, rust"),
				WithQuery("design doc"),
				WithSort(domain.SortByTitle, domain.SortAsc),
				WithPage(3),
			),
			want: "query=design+doc&tags=go%2C+rust&date_from=2024-01-02T00%3A00%3A00.000Z" +
				"&date_to=2024-02-01T22%3A59%3A59.999Z&group=eng&visibility=group&owner=bob" +
				"&sort_by=title&sort_order=asc&page=3&limit=10",
		},
		{
			name:   "visibility all is still a filter",
			filter: DefaultFilter().Apply(WithVisibility(domain.VisibilityAll)),
			want:   "visibility=all&sort_by=created_at&sort_order=desc&page=1&limit=10",
		},
		{
			name:   "zero value filter falls back to default sort",
			filter: Filter{},
			want:   "sort_by=created_at&sort_order=desc&page=1&limit=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.filter).Encode())
		})
	}
}

// Every subset of optional fields: empty ones never appear, the four fixed
// ones always do, and the order never changes.
func TestBuildQuery_OmitsEmptyFields(t *testing.T) {
	day := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	setters := []struct {
		key   string
		patch Patch
	}{
		{"query", WithQuery("q")},
		{"tags", WithTags("t")},
		{"date_from", WithDateFrom(&day)},
		{"date_to", WithDateTo(&day)},
		{"group", WithGroup("g")},
		{"visibility", WithVisibility(domain.VisibilityPublic)},
		{"owner", WithOwner("o")},
	}
	order := []string{"query", "tags", "date_from", "date_to", "group", "visibility", "owner", "sort_by", "sort_order", "page", "limit"}

	for mask := range 1 << len(setters) {
		f := DefaultFilter()
		set := map[string]bool{}
		for i, s := range setters {
			if mask&(1<<i) != 0 {
				f = f.Apply(s.patch)
				set[s.key] = true
			}
		}

		q := BuildQuery(f)
		for _, s := range setters {
			_, ok := q.Get(s.key)
			require.Equal(t, set[s.key], ok, "mask %b key %s", mask, s.key)
		}
		for _, k := range []string{"sort_by", "sort_order", "page", "limit"} {
			_, ok := q.Get(k)
			require.True(t, ok, "mask %b missing %s", mask, k)
		}

		pos := -1
		for _, p := range q {
			idx := indexOf(order, p.Key)
			require.Greater(t, idx, pos, "mask %b out of order: %s", mask, q.Encode())
			pos = idx
		}

		assert.Equal(t, f.Searchable(), mask != 0)
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestQuery_Values(t *testing.T) {
	q := BuildQuery(DefaultFilter().Apply(WithQuery("a&b=c")))

	assert.Equal(t, "a&b=c", q.Values().Get("query"))
	assert.True(t, strings.HasPrefix(q.String(), "query=a%26b%3Dc&"))
}

func TestWithDateFrom_CopiesValue(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := DefaultFilter().Apply(WithDateFrom(&d))

	d = d.AddDate(1, 0, 0)
	assert.Equal(t, 2024, f.DateFrom.Year())

	f = f.Apply(WithDateFrom(nil))
	assert.Nil(t, f.DateFrom)
}

func TestWithPage_FloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, DefaultFilter().Apply(WithPage(0)).Page)
	assert.Equal(t, 1, DefaultFilter().Apply(WithPage(-3)).Page)
	assert.Equal(t, 7, DefaultFilter().Apply(WithPage(7)).Page)
}
