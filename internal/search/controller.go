package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/docshelf/docshelf/internal/domain"
)

// User-facing failure messages.
const (
	MsgSearchFailed  = "Search failed. Please try again."
	MsgSearchOffline = "Search failed. Please check your connection."
)

// Searcher is the remote side of a fetch cycle.
type Searcher interface {
	SearchDocuments(ctx context.Context, q Query) ([]domain.Document, error)
	CountDocuments(ctx context.Context, q Query) (int, error)
	ListTags(ctx context.Context) ([]domain.TagCount, error)
}

// statusError is implemented by transport errors. HTTPStatus is 0 when no
// response was received.
type statusError interface {
	HTTPStatus() int
}

// Option configures a Controller.
type Option func(*Controller)

// WithInitialQuery seeds the free-text query, as a deep link would. A
// non-empty seed runs a fetch cycle as soon as the loop starts.
func WithInitialQuery(q string) Option {
	return func(c *Controller) { c.filter.Query = q }
}

// WithoutTagSuggestions skips the tag vocabulary fetch on start.
func WithoutTagSuggestions() Option {
	return func(c *Controller) { c.skipTags = true }
}

// Controller owns one search view. All state changes happen on the goroutine
// running Run; public methods only enqueue events and never fail.
type Controller struct {
	searcher Searcher
	logger   *slog.Logger
	events   chan event
	stopped  chan struct{}
	skipTags bool
	tagsOnce sync.Once
	running  atomic.Bool

	mu       sync.RWMutex
	snapshot State
	subs     []chan State
	closed   bool

	// Owned by the loop.
	ctx    context.Context
	filter Filter
	items  []domain.Document
	total  int
	shown  uint64
	epoch  uint64
	phase  Phase
	errMsg string
	tags   []domain.TagCount
}

// NewController creates a controller with default filter state.
func NewController(searcher Searcher, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		searcher: searcher,
		logger:   logger.With("component", "search"),
		events:   make(chan event, 64),
		stopped:  make(chan struct{}),
		filter:   DefaultFilter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot = c.state()
	return c
}

// Run processes events until ctx is done. In-flight requests share ctx, so
// they end with it.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("search controller already running")
	}
	c.ctx = ctx
	defer close(c.stopped)

	if !c.skipTags {
		go c.LoadTagSuggestions(ctx)
	}
	if c.filter.Searchable() {
		c.startCycle()
		c.publish()
	}

	for {
		select {
		case <-ctx.Done():
			c.closeSubscribers()
			return nil
		case ev := <-c.events:
			if c.handle(ev) {
				c.publish()
			}
		}
	}
}

// State returns the latest snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe returns a channel that receives the newest snapshot after each
// transition. Slow readers only see the latest one. The channel is closed
// when the loop stops or cancel is called.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	// The first snapshot and registration happen together so no publish
	// falls between them.
	c.mu.Lock()
	ch <- c.snapshot
	if c.closed {
		close(ch)
	} else {
		c.subs = append(c.subs, ch)
	}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s == ch {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel
}

// SetFilter merges a partial update. Only a page change can start a fetch.
func (c *Controller) SetFilter(patches ...Patch) { c.send(setFilterEvent{patches: patches}) }

// TriggerSearch is an explicit submit: back to page 1, then fetch.
func (c *Controller) TriggerSearch() { c.send(triggerEvent{}) }

// ClearFilters restores defaults and drops results without fetching.
func (c *Controller) ClearFilters() { c.send(clearEvent{}) }

// SetPage jumps to page n. The upper bound is left to the server.
func (c *Controller) SetPage(n int) { c.send(setPageEvent{page: n}) }

// NextPage advances one page unless already on the last.
func (c *Controller) NextPage() { c.send(stepPageEvent{delta: 1}) }

// PrevPage goes back one page unless already on the first.
func (c *Controller) PrevPage() { c.send(stepPageEvent{delta: -1}) }

// AddTagSuggestion appends a suggested tag to the tag filter if missing.
func (c *Controller) AddTagSuggestion(tag string) { c.send(addTagEvent{tag: tag}) }

// Sync blocks until every event sent before it has been applied, or ctx ends.
func (c *Controller) Sync(ctx context.Context) error {
	done := make(chan struct{})
	c.send(syncEvent{done: done})
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return errors.New("search controller stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadTagSuggestions fetches the tag vocabulary once. Failures are logged
// and leave the list empty.
func (c *Controller) LoadTagSuggestions(ctx context.Context) {
	c.tagsOnce.Do(func() {
		tags, err := c.searcher.ListTags(ctx)
		if err != nil {
			c.logger.Warn("failed to load tag suggestions", "error", err)
			return
		}
		c.post(ctx, tagsLoadedEvent{tags: tags})
	})
}

func (c *Controller) send(ev event) {
	select {
	case c.events <- ev:
	case <-c.stopped:
	}
}

// post delivers a completion unless the loop is gone.
func (c *Controller) post(ctx context.Context, ev event) {
	select {
	case c.events <- ev:
	case <-c.stopped:
	case <-ctx.Done():
	}
}

// handle applies one event and reports whether the snapshot changed.
func (c *Controller) handle(ev event) bool {
	switch ev := ev.(type) {
	case setFilterEvent:
		prev := c.filter.Page
		c.filter = c.filter.Apply(ev.patches...)
		if c.filter.Page != prev {
			c.maybeFetch()
		}
		return true

	case triggerEvent:
		c.filter.Page = 1
		c.maybeFetch()
		return true

	case clearEvent:
		c.filter = DefaultFilter()
		c.items = nil
		c.total = 0
		c.shown = 0
		c.errMsg = ""
		// Responses still in flight belong to the old filter.
		if c.phase == PhaseLoading {
			c.epoch++
		}
		c.phase = PhaseIdle
		return true

	case setPageEvent:
		return c.changePage(max(ev.page, 1))

	case stepPageEvent:
		pages := TotalPages(c.total)
		switch {
		case pages == 0:
			return false
		case ev.delta > 0 && c.filter.Page >= pages:
			return false
		case ev.delta < 0 && c.filter.Page <= 1:
			return false
		}
		return c.changePage(clampPage(c.filter.Page+ev.delta, pages))

	case addTagEvent:
		tags := AppendTag(c.filter.Tags, ev.tag)
		if tags == c.filter.Tags {
			return false
		}
		c.filter.Tags = tags
		return true

	case fetchDoneEvent:
		return c.complete(ev)

	case tagsLoadedEvent:
		c.tags = ev.tags
		return true

	case syncEvent:
		close(ev.done)
		return false
	}
	return false
}

func (c *Controller) changePage(page int) bool {
	if page == c.filter.Page {
		return false
	}
	c.filter.Page = page
	c.maybeFetch()
	return true
}

// maybeFetch starts a cycle unless the filter is empty.
func (c *Controller) maybeFetch() {
	if !c.filter.Searchable() {
		c.logger.Debug("empty filter, search skipped")
		return
	}
	c.startCycle()
}

func (c *Controller) startCycle() {
	c.epoch++
	epoch := c.epoch
	q := BuildQuery(c.filter)
	c.phase = PhaseLoading
	c.errMsg = ""

	c.logger.Debug("search cycle started", "epoch", epoch, "query", q.Encode())

	ctx := c.ctx
	go func() {
		var (
			items []domain.Document
			total int
			g     errgroup.Group
		)
		g.Go(func() error {
			var err error
			items, err = c.searcher.SearchDocuments(ctx, q)
			return err
		})
		g.Go(func() error {
			var err error
			total, err = c.searcher.CountDocuments(ctx, q)
			return err
		})
		err := g.Wait()
		c.post(ctx, fetchDoneEvent{epoch: epoch, items: items, total: total, err: err})
	}()
}

func (c *Controller) complete(ev fetchDoneEvent) bool {
	if ev.epoch != c.epoch {
		c.logger.Debug("stale search response dropped", "epoch", ev.epoch, "latest", c.epoch)
		return false
	}

	if ev.err != nil {
		c.phase = PhaseFailed
		c.errMsg = failureMessage(ev.err)
		c.logger.Warn("search failed", "epoch", ev.epoch, "error", ev.err)
		return true
	}

	c.items = ev.items
	if c.items == nil {
		c.items = []domain.Document{}
	}
	c.total = ev.total
	c.shown = ev.epoch
	c.phase = PhaseSettled
	c.logger.Debug("search settled", "epoch", ev.epoch, "items", len(ev.items), "total", ev.total)
	return true
}

func failureMessage(err error) string {
	var se statusError
	if errors.As(err, &se) && se.HTTPStatus() > 0 {
		return MsgSearchFailed
	}
	return MsgSearchOffline
}

func (c *Controller) state() State {
	return State{
		Filter:         c.filter,
		Items:          c.items,
		TotalCount:     c.total,
		Epoch:          c.shown,
		RequestedEpoch: c.epoch,
		Phase:          c.phase,
		Error:          c.errMsg,
		Tags:           c.tags,
	}
}

func (c *Controller) publish() {
	s := c.state()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = s
	for _, ch := range c.subs {
		// Keep only the newest snapshot for slow readers.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (c *Controller) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.closed = true
}
