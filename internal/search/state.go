package search

import "github.com/docshelf/docshelf/internal/domain"

// Phase is where the latest fetch cycle stands.
type Phase int

// Cycle phases. Superseded cycles never show up here; they are dropped.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSettled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// State is an immutable snapshot of the controller. Slices are shared
// between snapshots and must not be modified.
type State struct {
	Filter     Filter
	Items      []domain.Document
	TotalCount int
	// Epoch of the cycle that produced Items and TotalCount; 0 before the
	// first settled cycle.
	Epoch uint64
	// RequestedEpoch is the newest cycle started.
	RequestedEpoch uint64
	Phase          Phase
	Error          string
	Tags           []domain.TagCount
}

// Loading reports whether the newest cycle is still outstanding. Submitting
// is disabled while true.
func (s State) Loading() bool { return s.Phase == PhaseLoading }

// TotalPages is ceil(TotalCount / PageSize).
func (s State) TotalPages() int { return TotalPages(s.TotalCount) }

// CanPrev reports whether the previous-page control is enabled.
func (s State) CanPrev() bool {
	return s.TotalPages() > 0 && s.Filter.Page > 1
}

// CanNext reports whether the next-page control is enabled.
func (s State) CanNext() bool {
	return s.Filter.Page < s.TotalPages()
}

// TopTags returns at most n suggestions, most used first as served.
func (s State) TopTags(n int) []domain.TagCount {
	if len(s.Tags) <= n {
		return s.Tags
	}
	return s.Tags[:n]
}
