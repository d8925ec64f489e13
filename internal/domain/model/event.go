// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Event is one row of the public events feed plus the scores the pipeline
// attaches to it. Optional numeric fields are pointers; nil means absent.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Audience    string `json:"audience,omitempty"`   // public_cible
	EventType   string `json:"event_type,omitempty"` // type_evenement
	Borough     string `json:"borough,omitempty"`    // arrondissement
	Venue       string `json:"venue,omitempty"`      // emplacement
	VenueTitle  string `json:"venue_title,omitempty"`
	Cost        string `json:"cost,omitempty"` // raw cout text

	Price *float64 `json:"price,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	EmbeddingScore float64 `json:"embedding_score"`
	BoroughPref    float64 `json:"borough_pref"`
	CombinedScore  float64 `json:"combined_score"`

	TempC    *float64 `json:"temp_c,omitempty"`
	RainProb *float64 `json:"rain_prob,omitempty"`
}

// IsFree reports whether the event costs nothing. Absent price counts as free.
func (e *Event) IsFree() bool {
	return e.Price == nil || *e.Price == 0
}

// HasCoordinates reports whether both latitude and longitude are known.
func (e *Event) HasCoordinates() bool {
	return e.Lat != nil && e.Lon != nil
}

// Place joins the venue title and borough for display.
func (e *Event) Place() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(e.VenueTitle); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(e.Borough); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
