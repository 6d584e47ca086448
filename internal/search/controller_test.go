package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshelf/docshelf/internal/domain"
)

type httpStatusErr struct{ status int }

func (e httpStatusErr) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e httpStatusErr) HTTPStatus() int { return e.status }

// fakeSearcher answers from in-memory data. A gate registered for a page
// holds both requests of that page until it is closed.
type fakeSearcher struct {
	mu       sync.Mutex
	total    int
	gates    map[string]chan struct{}
	countErr error
	itemsErr error
	tags     []domain.TagCount
	tagsErr  error

	searchCalls []string
	countCalls  []string
}

func newFakeSearcher(total int) *fakeSearcher {
	return &fakeSearcher{total: total, gates: map[string]chan struct{}{}}
}

func (f *fakeSearcher) gate(page string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[page] = ch
	return ch
}

func (f *fakeSearcher) wait(ctx context.Context, q Query) error {
	page, _ := q.Get("page")
	f.mu.Lock()
	ch := f.gates[page]
	f.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSearcher) SearchDocuments(ctx context.Context, q Query) ([]domain.Document, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, q.Encode())
	err := f.itemsErr
	f.mu.Unlock()

	if werr := f.wait(ctx, q); werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	page, _ := q.Get("page")
	return []domain.Document{{ID: "doc-p" + page, Title: "page " + page}}, nil
}

func (f *fakeSearcher) CountDocuments(ctx context.Context, q Query) (int, error) {
	f.mu.Lock()
	f.countCalls = append(f.countCalls, q.Encode())
	err := f.countErr
	total := f.total
	f.mu.Unlock()

	if werr := f.wait(ctx, q); werr != nil {
		return 0, werr
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (f *fakeSearcher) ListTags(context.Context) ([]domain.TagCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags, f.tagsErr
}

func (f *fakeSearcher) calls() (search, count []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchCalls...), append([]string(nil), f.countCalls...)
}

func startController(t *testing.T, fs *fakeSearcher, opts ...Option) *Controller {
	t.Helper()
	c := NewController(fs, nil, opts...)
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
	return c
}

func syncLoop(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
}

func waitIdle(t *testing.T, c *Controller) State {
	t.Helper()
	syncLoop(t, c)
	require.Eventually(t, func() bool {
		return !c.State().Loading()
	}, time.Second, 5*time.Millisecond)
	return c.State()
}

func TestController_EmptyFilterIssuesNoRequest(t *testing.T) {
	fs := newFakeSearcher(5)
	c := startController(t, fs, WithoutTagSuggestions())

	c.TriggerSearch()
	c.SetPage(4)
	syncLoop(t, c)

	search, count := fs.calls()
	assert.Empty(t, search)
	assert.Empty(t, count)

	s := c.State()
	assert.Nil(t, s.Items)
	assert.Zero(t, s.TotalCount)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 4, s.Filter.Page)
}

func TestController_SetFilterDoesNotFetch(t *testing.T) {
	fs := newFakeSearcher(5)
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"), WithTags("tutorial"))
	syncLoop(t, c)

	search, _ := fs.calls()
	assert.Empty(t, search)
	assert.Equal(t, "react", c.State().Filter.Query)
}

func TestController_TriggerSearchSettles(t *testing.T) {
	fs := newFakeSearcher(23)
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"), WithTags("tutorial"), WithPage(3))
	syncLoop(t, c)
	waitIdle(t, c)

	c.TriggerSearch()
	s := waitIdle(t, c)

	assert.Equal(t, PhaseSettled, s.Phase)
	assert.Equal(t, 1, s.Filter.Page)
	assert.Equal(t, 23, s.TotalCount)
	assert.Equal(t, 3, s.TotalPages())
	require.Len(t, s.Items, 1)
	assert.Equal(t, "doc-p1", s.Items[0].ID)
	assert.Equal(t, s.RequestedEpoch, s.Epoch)

	search, count := fs.calls()
	want := "query=react&tags=tutorial&sort_by=created_at&sort_order=desc&page=1&limit=10"
	assert.Equal(t, want, search[len(search)-1])
	assert.Equal(t, want, count[len(count)-1])
}

func TestController_NewerCycleWins(t *testing.T) {
	fs := newFakeSearcher(23)
	gate1 := fs.gate("1")
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"))
	c.TriggerSearch()
	syncLoop(t, c)
	require.True(t, c.State().Loading())

	c.SetPage(2)
	require.Eventually(t, func() bool {
		return c.State().Epoch == 2
	}, time.Second, 5*time.Millisecond)

	s := c.State()
	assert.Equal(t, "doc-p2", s.Items[0].ID)
	assert.False(t, s.Loading())

	// Page 1 answers last and must be dropped.
	close(gate1)
	require.Eventually(t, func() bool {
		search, count := fs.calls()
		return len(search) == 2 && len(count) == 2
	}, time.Second, 5*time.Millisecond)
	syncLoop(t, c)
	time.Sleep(20 * time.Millisecond)
	syncLoop(t, c)

	s = c.State()
	assert.Equal(t, uint64(2), s.Epoch)
	assert.Equal(t, "doc-p2", s.Items[0].ID)
	assert.Equal(t, 2, s.Filter.Page)
}

func TestController_LoadingUntilLatestCycleSettles(t *testing.T) {
	fs := newFakeSearcher(23)
	gate2 := fs.gate("2")
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"))
	c.TriggerSearch()
	s := waitIdle(t, c)
	require.Equal(t, uint64(1), s.Epoch)

	c.NextPage()
	syncLoop(t, c)
	assert.True(t, c.State().Loading())
	assert.Equal(t, "doc-p1", c.State().Items[0].ID, "previous results stay visible while loading")

	close(gate2)
	s = waitIdle(t, c)
	assert.Equal(t, "doc-p2", s.Items[0].ID)
}

func TestController_FailureKeepsPreviousResults(t *testing.T) {
	tests := []struct {
		name    string
		fail    func(fs *fakeSearcher, err error)
		err     error
		wantMsg string
	}{
		{
			name:    "count rejected by server",
			fail:    func(fs *fakeSearcher, err error) { fs.countErr = err },
			err:     httpStatusErr{status: 500},
			wantMsg: MsgSearchFailed,
		},
		{
			name:    "items lost on the wire",
			fail:    func(fs *fakeSearcher, err error) { fs.itemsErr = err },
			err:     errors.New("dial tcp: connection refused"),
			wantMsg: MsgSearchOffline,
		},
		{
			name:    "wrapped status error",
			fail:    func(fs *fakeSearcher, err error) { fs.itemsErr = err },
			err:     fmt.Errorf("search: %w", httpStatusErr{status: 403}),
			wantMsg: MsgSearchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeSearcher(23)
			c := startController(t, fs, WithoutTagSuggestions())

			c.SetFilter(WithQuery("react"))
			c.TriggerSearch()
			before := waitIdle(t, c)
			require.Equal(t, PhaseSettled, before.Phase)

			fs.mu.Lock()
			fs.total = 99
			tt.fail(fs, tt.err)
			fs.mu.Unlock()

			c.NextPage()
			after := waitIdle(t, c)

			assert.Equal(t, PhaseFailed, after.Phase)
			assert.Equal(t, tt.wantMsg, after.Error)
			assert.Equal(t, before.Items, after.Items)
			assert.Equal(t, 23, after.TotalCount)
			assert.Equal(t, before.Epoch, after.Epoch)
		})
	}
}

func TestController_NewCycleClearsError(t *testing.T) {
	fs := newFakeSearcher(5)
	fs.countErr = httpStatusErr{status: 502}
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("x"))
	c.TriggerSearch()
	require.Equal(t, MsgSearchFailed, waitIdle(t, c).Error)

	fs.mu.Lock()
	fs.countErr = nil
	fs.mu.Unlock()

	c.TriggerSearch()
	s := waitIdle(t, c)
	assert.Empty(t, s.Error)
	assert.Equal(t, 5, s.TotalCount)
}

func TestController_PageNavigationClamped(t *testing.T) {
	fs := newFakeSearcher(23)
	c := startController(t, fs, WithoutTagSuggestions())

	c.PrevPage()
	c.NextPage()
	syncLoop(t, c)
	assert.Equal(t, 1, c.State().Filter.Page, "no results means both directions are disabled")

	c.SetFilter(WithQuery("react"))
	c.TriggerSearch()
	waitIdle(t, c)

	c.PrevPage()
	syncLoop(t, c)
	assert.Equal(t, 1, c.State().Filter.Page)

	c.NextPage()
	waitIdle(t, c)
	c.NextPage()
	waitIdle(t, c)
	c.NextPage()
	syncLoop(t, c)
	s := waitIdle(t, c)
	assert.Equal(t, 3, s.Filter.Page)
	assert.False(t, s.CanNext())

	search, _ := fs.calls()
	assert.Len(t, search, 3)
}

func TestController_ClearFilters(t *testing.T) {
	fs := newFakeSearcher(23)
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"), WithVisibility(domain.VisibilityPublic))
	c.TriggerSearch()
	waitIdle(t, c)
	c.NextPage()
	waitIdle(t, c)

	c.ClearFilters()
	syncLoop(t, c)

	s := c.State()
	assert.Equal(t, DefaultFilter(), s.Filter)
	assert.Empty(t, s.Items)
	assert.Zero(t, s.TotalCount)
	assert.Equal(t, PhaseIdle, s.Phase)

	search, _ := fs.calls()
	assert.Len(t, search, 2)
}

func TestController_ClearFiltersDropsInFlightCycle(t *testing.T) {
	fs := newFakeSearcher(23)
	gate := fs.gate("1")
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("react"))
	c.TriggerSearch()
	c.ClearFilters()
	syncLoop(t, c)

	close(gate)
	require.Eventually(t, func() bool {
		_, count := fs.calls()
		return len(count) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	syncLoop(t, c)

	s := c.State()
	assert.Empty(t, s.Items)
	assert.False(t, s.Loading())
}

func TestController_AddTagSuggestion(t *testing.T) {
	fs := newFakeSearcher(0)
	c := startController(t, fs, WithoutTagSuggestions())

	c.AddTagSuggestion("react")
	c.AddTagSuggestion("tutorial")
	c.AddTagSuggestion("react")
	syncLoop(t, c)

	assert.Equal(t, "react, tutorial", c.State().Filter.Tags)

	search, _ := fs.calls()
	assert.Empty(t, search, "adding a tag is a filter edit, not a search")
}

func TestController_TagSuggestionsLoadedOnStart(t *testing.T) {
	fs := newFakeSearcher(0)
	fs.tags = []domain.TagCount{{Tag: "go", Count: 9}, {Tag: "rust", Count: 4}}
	c := startController(t, fs)

	require.Eventually(t, func() bool {
		return len(c.State().Tags) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.TagCount{{Tag: "go", Count: 9}}, c.State().TopTags(1))

	// One-shot per controller.
	fs.mu.Lock()
	fs.tags = nil
	fs.mu.Unlock()
	c.LoadTagSuggestions(context.Background())
	syncLoop(t, c)
	assert.Len(t, c.State().Tags, 2)
}

func TestController_TagSuggestionFailureLeavesListEmpty(t *testing.T) {
	fs := newFakeSearcher(0)
	fs.tagsErr = errors.New("offline")
	c := startController(t, fs)

	time.Sleep(20 * time.Millisecond)
	syncLoop(t, c)
	assert.Empty(t, c.State().Tags)
	assert.Empty(t, c.State().Error)
}

func TestController_InitialQueryFetchesOnStart(t *testing.T) {
	fs := newFakeSearcher(3)
	c := startController(t, fs, WithInitialQuery("budget"), WithoutTagSuggestions())

	s := waitIdle(t, c)
	require.Equal(t, PhaseSettled, s.Phase)
	assert.Equal(t, "budget", s.Filter.Query)

	search, _ := fs.calls()
	require.Len(t, search, 1)
	assert.Equal(t, "query=budget&sort_by=created_at&sort_order=desc&page=1&limit=10", search[0])
}

func TestController_Subscribe(t *testing.T) {
	fs := newFakeSearcher(12)
	c := startController(t, fs, WithoutTagSuggestions())

	updates, cancel := c.Subscribe()
	defer cancel()

	c.SetFilter(WithQuery("q"))
	c.TriggerSearch()

	deadline := time.After(time.Second)
	for {
		select {
		case s := <-updates:
			if s.Phase == PhaseSettled {
				assert.Equal(t, 12, s.TotalCount)
				return
			}
		case <-deadline:
			t.Fatal("no settled snapshot received")
		}
	}
}

func TestController_RunTwice(t *testing.T) {
	c := startController(t, newFakeSearcher(0), WithoutTagSuggestions())
	syncLoop(t, c)

	assert.Error(t, c.Run(context.Background()))
}

func TestController_SubscribersJoiningMidCycleSeeTheResult(t *testing.T) {
	fs := newFakeSearcher(12)
	release := fs.gate("1")
	c := startController(t, fs, WithoutTagSuggestions())

	c.SetFilter(WithQuery("q"))
	c.TriggerSearch()
	syncLoop(t, c)
	require.True(t, c.State().Loading())

	const readers = 20
	results := make(chan State, readers)
	var joined sync.WaitGroup
	joined.Add(readers)
	for range readers {
		go func() {
			updates, cancel := c.Subscribe()
			defer cancel()
			joined.Done()
			timeout := time.After(2 * time.Second)
			for {
				select {
				case s := <-updates:
					if !s.Loading() {
						results <- s
						return
					}
				case <-timeout:
					results <- State{Phase: PhaseLoading}
					return
				}
			}
		}()
	}
	go func() {
		joined.Wait()
		close(release)
	}()

	for range readers {
		s := <-results
		assert.Equal(t, PhaseSettled, s.Phase)
		assert.Equal(t, 12, s.TotalCount)
	}
}

func TestController_SubscribeAfterStop(t *testing.T) {
	c := NewController(newFakeSearcher(0), nil, WithoutTagSuggestions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	syncLoop(t, c)
	cancel()
	<-done

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	s, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, s.Phase)
	_, ok = <-updates
	assert.False(t, ok)
}

func TestController_ConcurrentRunStartsOnce(t *testing.T) {
	c := NewController(newFakeSearcher(0), nil, WithoutTagSuggestions())
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- c.Run(ctx) }()
	}

	// The loser returns at once; the winner runs until cancelled.
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Run did not fail")
	}
	cancel()
	assert.NoError(t, <-errs)
}
