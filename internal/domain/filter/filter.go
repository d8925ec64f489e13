// Package filter applies the hard constraints of a preference profile to
// feed events.
package filter

import (
	"regexp"
	"strings"
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// Reason names the predicate that rejected an event. Empty means kept.
type Reason string

// Rejection reasons.
const (
	ReasonNone         Reason = ""
	ReasonMissingField Reason = "missing_field"
	ReasonAudience     Reason = "audience"
	ReasonChildren     Reason = "children"
	ReasonVenue        Reason = "venue"
	ReasonType         Reason = "event_type"
	ReasonBorough      Reason = "borough"
	ReasonPrice        Reason = "price"
	ReasonWindow       Reason = "window"
)

// DefaultWindowDays is the upcoming window used when none is configured.
const DefaultWindowDays = 7

var childPattern = regexp.MustCompile(`(?i)\benfant|jeunesse|jeunes|ados\b`)

// Window is the inclusive interval an event must start in.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns [now, now+days]. Non-positive days fall back to the default.
func NewWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	return Window{From: now, To: now.AddDate(0, 0, days)}
}

// Contains reports whether t lies in the window, both ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Stats counts kept events and rejections per predicate.
type Stats struct {
	Input    int
	Kept     int
	Rejected map[Reason]int
}

// Engine holds a compiled set of hard filters.
type Engine struct {
	audience        map[string]struct{}
	excludeChildren bool
	venueExclude    []string
	types           map[string]struct{}
	boroughs        map[string]struct{}
	maxPrice        *float64
	freeOnly        bool
}

// New compiles hf into an Engine.
func New(hf model.HardFilters) *Engine {
	e := &Engine{
		audience:        toSet(hf.AudienceAllow),
		excludeChildren: hf.ExcludeChildren,
		types:           toSet(hf.TypeAllow),
		boroughs:        toSet(hf.BoroughAllow),
		maxPrice:        hf.MaxPrice,
		freeOnly:        hf.FreeOnly,
	}
	for _, v := range hf.VenueExclude {
		if s := normalize(v); s != "" {
			e.venueExclude = append(e.venueExclude, s)
		}
	}
	return e
}

// Apply keeps the events that pass every predicate, in input order.
func (e *Engine) Apply(events []model.Event, w Window) ([]model.Event, Stats) {
	st := Stats{Input: len(events), Rejected: make(map[Reason]int)}
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if r := e.Check(&events[i], w); r != ReasonNone {
			st.Rejected[r]++
			continue
		}
		out = append(out, events[i])
	}
	st.Kept = len(out)
	return out, st
}

// Check returns the first predicate ev fails, or ReasonNone.
func (e *Engine) Check(ev *model.Event, w Window) Reason {
	if ev.Start.IsZero() {
		return ReasonMissingField
	}

	audience := normalize(ev.Audience)
	if len(e.audience) > 0 {
		if audience == "" {
			return ReasonMissingField
		}
		if _, ok := e.audience[audience]; !ok {
			return ReasonAudience
		}
	}
	if e.excludeChildren && audience != "" && childPattern.MatchString(audience) {
		return ReasonChildren
	}

	if venue := normalize(ev.Venue); venue != "" {
		for _, token := range e.venueExclude {
			if strings.Contains(venue, token) {
				return ReasonVenue
			}
		}
	}

	if r := member(e.types, ev.EventType, ReasonType); r != ReasonNone {
		return r
	}
	if r := member(e.boroughs, ev.Borough, ReasonBorough); r != ReasonNone {
		return r
	}

	if !e.priceOK(ev) {
		return ReasonPrice
	}

	if !w.Contains(ev.Start) {
		return ReasonWindow
	}
	return ReasonNone
}

func (e *Engine) priceOK(ev *model.Event) bool {
	if ev.IsFree() {
		return true
	}
	if e.freeOnly {
		return false
	}
	if e.maxPrice == nil {
		return true
	}
	return *ev.Price <= *e.maxPrice
}

// member checks v against an allow-list. An empty list allows anything.
func member(set map[string]struct{}, v string, reason Reason) Reason {
	if len(set) == 0 {
		return ReasonNone
	}
	key := normalize(v)
	if key == "" {
		return ReasonMissingField
	}
	if _, ok := set[key]; !ok {
		return reason
	}
	return ReasonNone
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if s := normalize(v); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Apply is a convenience wrapper around New(hf).Apply.
func Apply(events []model.Event, hf model.HardFilters, w Window) ([]model.Event, Stats) {
	return New(hf).Apply(events, w)
}
