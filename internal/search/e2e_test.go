package search_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/apitest"
	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/search"
)

type bearer string

func (b bearer) AuthorizationHeader() (string, bool) { return "Bearer " + string(b), true }

// seed stores n public documents titled "Report 01".."Report n", oldest first,
// plus one unrelated document, and returns an authorized client.
func seed(t *testing.T, srv *apitest.Server, n int) *api.Client {
	t.Helper()
	alice := srv.AddUser("alice", "Alice Doe", "research")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		srv.AddDocument(alice, domain.Document{
			Title:     fmt.Sprintf("Report %02d", i),
			Tags:      []string{"finance"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}, nil)
	}
	srv.AddDocument(alice, domain.Document{Title: "Holiday photos", Tags: []string{"travel"}, CreatedAt: base}, nil)

	c, err := api.New(api.Config{BaseURL: srv.URL, RateLimit: 1000, RateBurst: 1000}, nil)
	require.NoError(t, err)
	c.SetAuthorizer(bearer(srv.IssueToken("alice", time.Hour)))
	return c
}

func run(t *testing.T, c *search.Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func settled(t *testing.T, c *search.Controller) search.State {
	t.Helper()
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.Loading() && s.Phase != search.PhaseIdle
	}, 5*time.Second, 5*time.Millisecond)
	return c.State()
}

func TestEndToEnd_LaterPageWinsOverSlowFirstPage(t *testing.T) {
	srv := apitest.New(t)
	client := seed(t, srv, 25)

	c := search.NewController(client, nil)
	run(t, c)

	release := srv.Hold(apitest.PathAndParam("/documents/search/count", "page", "1"))
	defer release()

	c.SetFilter(search.WithQuery("report"))
	c.TriggerSearch()
	require.Eventually(t, func() bool {
		return len(srv.RequestsTo("/documents/search/count")) == 1
	}, 5*time.Second, 5*time.Millisecond)

	c.SetPage(2)
	settled(t, c)

	release()
	// Give the released cycle time to come back and be dropped.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Sync(context.Background()))

	s := c.State()
	assert.Equal(t, search.PhaseSettled, s.Phase)
	assert.Equal(t, uint64(2), s.Epoch)
	assert.Equal(t, 25, s.TotalCount)
	assert.Equal(t, 3, s.TotalPages())
	require.Len(t, s.Items, 10)
	assert.Equal(t, "Report 15", s.Items[0].Title)
	assert.Equal(t, "Report 06", s.Items[9].Title)
	assert.Empty(t, s.Error)

	var queries []string
	for _, r := range srv.RequestsTo("/documents/search") {
		queries = append(queries, r.RawQuery)
	}
	assert.ElementsMatch(t, []string{
		"query=report&sort_by=created_at&sort_order=desc&page=1&limit=10",
		"query=report&sort_by=created_at&sort_order=desc&page=2&limit=10",
	}, queries)
}

func TestEndToEnd_ServerErrorKeepsResults(t *testing.T) {
	srv := apitest.New(t)
	client := seed(t, srv, 3)

	c := search.NewController(client, nil, search.WithInitialQuery("report"))
	run(t, c)

	s := settled(t, c)
	require.Len(t, s.Items, 3)

	srv.Fail(apitest.Path("/documents/search"), 500, "", 1)
	c.SetFilter(search.WithTags("finance"))
	c.TriggerSearch()

	require.Eventually(t, func() bool {
		return c.State().Phase == search.PhaseFailed
	}, 5*time.Second, 5*time.Millisecond)

	s = c.State()
	assert.Equal(t, search.MsgSearchFailed, s.Error)
	assert.Len(t, s.Items, 3)
	assert.Equal(t, 3, s.TotalCount)
}

func TestEndToEnd_TagSuggestions(t *testing.T) {
	srv := apitest.New(t)
	client := seed(t, srv, 2)

	c := search.NewController(client, nil)
	run(t, c)

	require.Eventually(t, func() bool {
		return len(c.State().Tags) == 2
	}, 5*time.Second, 5*time.Millisecond)

	s := c.State()
	assert.Equal(t, domain.TagCount{Tag: "finance", Count: 2}, s.Tags[0])
	assert.Equal(t, []domain.TagCount{{Tag: "finance", Count: 2}}, s.TopTags(1))

	c.AddTagSuggestion("finance")
	c.AddTagSuggestion("finance")
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, "finance", c.State().Filter.Tags)
	assert.Empty(t, srv.RequestsTo("/documents/search"))
}
