package scraper

import (
	"time"

	"qdreviews/pkg/metrics"
)

// ChapterState is where a chapter ended up in a run
type ChapterState string

const (
	StatePending      ChapterState = "pending"
	StateSkipped      ChapterState = metrics.StateSkipped
	StateFetchedEmpty ChapterState = metrics.StateFetchedEmpty
	StateFetched      ChapterState = metrics.StateFetched
	StateErrored      ChapterState = metrics.StateErrored
)

// ChapterResult is the outcome for one scheduled chapter
type ChapterResult struct {
	ID       string
	Name     string
	State    ChapterState
	Comments int
	Err      error
}

// Report summarizes a run
type Report struct {
	BookID            string
	ChaptersListed    int
	ChaptersScheduled int
	// FreeOnly is true when paid chapters were left out
	FreeOnly bool

	Chapters  []ChapterResult
	Comments  int
	Refreshes int
	Cooldowns int

	ChaptersDir   string
	AggregatePath string
	AggregateRows int
	Duration      time.Duration
}

// Count returns how many chapters ended in state
func (r *Report) Count(state ChapterState) int {
	n := 0
	for _, c := range r.Chapters {
		if c.State == state {
			n++
		}
	}
	return n
}
