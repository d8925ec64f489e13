// Package summarizer picks the final events from the shortlist and writes the
// weekly markdown digest, with an LLM when one is configured and a plain
// list otherwise.
package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// MaxBullets caps the fallback list.
const MaxBullets = 10

// NoEventsLine is the body of an empty digest.
const NoEventsLine = "_No events matched your filters this week._"

// Heading is the digest title for the week of runDate.
func Heading(runDate time.Time) string {
	return fmt.Sprintf("# Montréal Events — Week of %s", runDate.Format(time.DateOnly))
}

func intro(runDate time.Time) string {
	return Heading(runDate) + "\n\nHere are this week's highlights. Weather notes are approximate.\n"
}

// Markdown renders events as a plain Top Picks list.
func Markdown(events []model.Event, runDate time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(intro(runDate))
	if len(events) == 0 {
		b.WriteString("\n" + NoEventsLine + "\n")
		return b.String()
	}
	b.WriteString("\n## Top Picks\n")
	for i := range events {
		if i == MaxBullets {
			break
		}
		b.WriteString(bullet(&events[i], loc))
		b.WriteString("\n")
	}
	return b.String()
}

func bullet(e *model.Event, loc *time.Location) string {
	parts := []string{fmt.Sprintf("- **%s** (%s)", e.Title, e.Borough)}
	if d := FormatDate(e.Start, loc); d != "" {
		parts = append(parts, d)
	}
	if e.EventType != "" {
		parts = append(parts, e.EventType)
	}
	if e.IsFree() {
		parts = append(parts, "free")
	}
	if wx := weatherTag(e); wx != "" {
		parts = append(parts, wx)
	}
	line := strings.Join(parts, " — ")
	if e.URL != "" {
		line += "\n  " + e.URL
	}
	return line
}

// FormatDate renders a short day label such as "Tue, Oct 20".
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("Mon, Jan 02")
}

func weatherTag(e *model.Event) string {
	var wx []string
	if e.TempC != nil {
		wx = append(wx, fmt.Sprintf("%.1f°C", *e.TempC))
	}
	if e.RainProb != nil {
		wx = append(wx, fmt.Sprintf("%d%% rain", int(*e.RainProb)))
	}
	return strings.Join(wx, ", ")
}

// TopPositions returns the first n shortlist positions in rank order.
func TopPositions(shortlist []model.Event, n int) []int {
	return pad(nil, shortlist, n)
}

// pad appends unpicked shortlist positions in rank order until picked holds n.
func pad(picked []int, shortlist []model.Event, n int) []int {
	seen := make(map[int]struct{}, len(picked))
	for _, i := range picked {
		seen[i] = struct{}{}
	}
	for i := range shortlist {
		if len(picked) >= n {
			break
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		picked = append(picked, i)
	}
	return picked
}

// Pick returns the shortlist events at positions, in positions order.
// Out-of-range positions are skipped.
func Pick(shortlist []model.Event, positions []int) []model.Event {
	out := make([]model.Event, 0, len(positions))
	for _, i := range positions {
		if i >= 0 && i < len(shortlist) {
			out = append(out, shortlist[i])
		}
	}
	return out
}
