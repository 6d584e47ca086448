package search

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docshelf/docshelf/internal/domain"
)

// DateLayout is how filter dates are sent: UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Param is one key/value pair of a canonical query.
type Param struct {
	Key   string
	Value string
}

// Query is a canonical search query. Parameter order is fixed so equal
// filters always encode to byte-identical strings.
type Query []Param

// BuildQuery serialises a filter. Empty fields are omitted; sort_by,
// sort_order, page and limit are always present.
func BuildQuery(f Filter) Query {
	q := make(Query, 0, 11)
	add := func(k, v string) {
		if v != "" {
			q = append(q, Param{Key: k, Value: v})
		}
	}

	add("query", f.Query)
	add("tags", f.Tags)
	add("date_from", formatDate(f.DateFrom))
	add("date_to", formatDate(f.DateTo))
	add("group", f.Group)
	add("visibility", string(f.Visibility))
	add("owner", f.Owner)

	sortBy, sortOrder := f.SortBy, f.SortOrder
	if sortBy == "" {
		sortBy = domain.SortByCreatedAt
	}
	if sortOrder == "" {
		sortOrder = domain.SortDesc
	}

	q = append(q,
		Param{Key: "sort_by", Value: string(sortBy)},
		Param{Key: "sort_order", Value: string(sortOrder)},
		Param{Key: "page", Value: strconv.Itoa(max(f.Page, 1))},
		Param{Key: "limit", Value: strconv.Itoa(PageSize)},
	)
	return q
}

// Encode renders the query as application/x-www-form-urlencoded in
// parameter order.
func (q Query) Encode() string {
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (q Query) String() string { return q.Encode() }

// Get returns the value for key.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Values converts the query to url.Values. Order is lost.
func (q Query) Values() url.Values {
	v := make(url.Values, len(q))
	for _, p := range q {
		v.Add(p.Key, p.Value)
	}
	return v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
