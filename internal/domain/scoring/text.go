package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/okian/sortie/internal/domain/model"
)

// DefaultDescriptionCap is how many runes of a description are embedded.
const DefaultDescriptionCap = 300

const ellipsis = "…"

// CanonicalText renders the text embedded for an event: the title, then up
// to limit runes of the description, joined by " | ". Blank parts are
// skipped and a cut description ends with an ellipsis.
func CanonicalText(e *model.Event, limit int) string {
	if limit <= 0 {
		limit = DefaultDescriptionCap
	}
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(e.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		if r := []rune(d); len(r) > limit {
			d = strings.TrimSpace(string(r[:limit])) + ellipsis
		}
		parts = append(parts, d)
	}
	return strings.Join(parts, " | ")
}

// Key is the cache key of text embedded by modelID.
func Key(modelID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
