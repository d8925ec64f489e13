// Package types contains the read shapes the API returns for ranked events.
package types

import (
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// Entry represents one shortlisted event with its scores.
type Entry struct {
	Rank           int       `json:"rank"`
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	URL            string    `json:"url,omitempty"`
	Borough        string    `json:"borough,omitempty"`
	EventType      string    `json:"event_type,omitempty"`
	Start          time.Time `json:"start"`
	Free           bool      `json:"free"`
	EmbeddingScore float64   `json:"embedding_score"`
	BoroughPref    float64   `json:"borough_pref"`
	Score          float64   `json:"score"`
	TempC          *float64  `json:"temp_c,omitempty"`
	RainProb       *float64  `json:"rain_prob,omitempty"`
}

// FromEvents converts ranked events to entries, ranks starting at 1.
func FromEvents(events []model.Event) []Entry {
	out := make([]Entry, len(events))
	for i := range events {
		e := &events[i]
		out[i] = Entry{
			Rank:           i + 1,
			ID:             e.ID,
			Title:          e.Title,
			URL:            e.URL,
			Borough:        e.Borough,
			EventType:      e.EventType,
			Start:          e.Start,
			Free:           e.IsFree(),
			EmbeddingScore: e.EmbeddingScore,
			BoroughPref:    e.BoroughPref,
			Score:          e.CombinedScore,
			TempC:          e.TempC,
			RainProb:       e.RainProb,
		}
	}
	return out
}
