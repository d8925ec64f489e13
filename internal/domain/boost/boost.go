// Package boost scores events by the position of their borough in the
// user's ordered preference list.
package boost

import (
	"strings"

	"github.com/okian/sortie/internal/domain/model"
)

// Ranker maps a borough to its positional preference. The zero value
// ranks everything 0.
type Ranker struct {
	pos map[string]int
	k   int
}

// NewRanker builds a Ranker from an ordered borough list. Duplicates keep
// their first position.
func NewRanker(order []string) Ranker {
	r := Ranker{pos: make(map[string]int, len(order)), k: len(order)}
	for i, b := range order {
		key := normalize(b)
		if _, seen := r.pos[key]; !seen {
			r.pos[key] = i
		}
	}
	return r
}

// Score returns (k-i)/k for a borough at index i of k, and 0 when the
// borough is absent or the list is empty.
func (r Ranker) Score(borough string) float64 {
	if r.k == 0 {
		return 0
	}
	i, ok := r.pos[normalize(borough)]
	if !ok {
		return 0
	}
	return float64(r.k-i) / float64(r.k)
}

// Apply stamps BoroughPref on every event in place.
func (r Ranker) Apply(events []model.Event) {
	for i := range events {
		events[i].BoroughPref = r.Score(events[i].Borough)
	}
}

// BoroughPref scores a single borough against order.
func BoroughPref(borough string, order []string) float64 {
	return NewRanker(order).Score(borough)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
