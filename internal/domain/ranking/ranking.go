// Package ranking blends the sub-scores of events and selects the shortlist.
package ranking

import (
	"sort"

	"github.com/okian/sortie/internal/domain/model"
)

// Default blend weights and shortlist length.
const (
	DefaultEmbWeight     = 0.7
	DefaultBoroughWeight = 0.3
	DefaultTopK          = 30
)

// Weights are the linear coefficients of the combined score. They need not
// sum to 1.
type Weights struct {
	Emb     float64
	Borough float64
}

// DefaultWeights returns the 0.7 / 0.3 blend.
func DefaultWeights() Weights {
	return Weights{Emb: DefaultEmbWeight, Borough: DefaultBoroughWeight}
}

// Combine returns the weighted sum of the two sub-scores.
func (w Weights) Combine(emb, borough float64) float64 {
	return w.Emb*emb + w.Borough*borough
}

// Blend sets CombinedScore on every event in place.
func Blend(events []model.Event, w Weights) {
	for i := range events {
		events[i].CombinedScore = w.Combine(events[i].EmbeddingScore, events[i].BoroughPref)
	}
}

// Less orders a before b: higher combined score, then higher embedding
// score, then earlier start. Equal events keep their input order when
// sorted stably.
func Less(a, b *model.Event) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.EmbeddingScore != b.EmbeddingScore {
		return a.EmbeddingScore > b.EmbeddingScore
	}
	return a.Start.Before(b.Start)
}

// Select returns a sorted copy of events truncated to k. Fewer than k
// events, or k <= 0, returns them all. The input slice is not reordered.
func Select(events []model.Event, k int) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return Less(&out[i], &out[j]) })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Rank blends and selects in one step.
func Rank(events []model.Event, w Weights, k int) []model.Event {
	Blend(events, w)
	return Select(events, k)
}
