package search

import "github.com/docshelf/docshelf/internal/domain"

// event is a message handled by the controller loop.
type event interface {
	isEvent()
}

type (
	setFilterEvent struct{ patches []Patch }
	triggerEvent   struct{}
	clearEvent     struct{}
	setPageEvent   struct{ page int }
	stepPageEvent  struct{ delta int }
	addTagEvent    struct{ tag string }

	fetchDoneEvent struct {
		epoch uint64
		items []domain.Document
		total int
		err   error
	}

	tagsLoadedEvent struct {
		tags []domain.TagCount
	}

	// syncEvent lets callers wait until every earlier event is applied.
	syncEvent struct{ done chan struct{} }
)

func (setFilterEvent) isEvent()  {}
func (triggerEvent) isEvent()    {}
func (clearEvent) isEvent()      {}
func (setPageEvent) isEvent()    {}
func (stepPageEvent) isEvent()   {}
func (addTagEvent) isEvent()     {}
func (fetchDoneEvent) isEvent()  {}
func (tagsLoadedEvent) isEvent() {}
func (syncEvent) isEvent()       {}
