package summarizer

import (
	"context"
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// Fallback selects by rank and renders the plain list. It never fails.
type Fallback struct {
	loc *time.Location
}

// NewFallback returns a Fallback formatting dates in loc.
func NewFallback(loc *time.Location) *Fallback {
	if loc == nil {
		loc = time.UTC
	}
	return &Fallback{loc: loc}
}

// Select returns the first n shortlist positions.
func (f *Fallback) Select(_ context.Context, shortlist []model.Event, _ model.Preferences, n int) ([]int, error) {
	return TopPositions(shortlist, n), nil
}

// Compose renders the Top Picks list.
func (f *Fallback) Compose(_ context.Context, events []model.Event, runDate time.Time) (string, error) {
	return Markdown(events, runDate, f.loc), nil
}

// Model names the summarizer in run results.
func (f *Fallback) Model() string { return "fallback" }
