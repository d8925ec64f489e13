// Package samplefeed generates synthetic event exports in the open-data
// layout, for demos and for exercising the pipeline offline.
package samplefeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sortie/internal/adapters/feed"
	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/pkg/fileutil"
	"github.com/okian/sortie/pkg/logger"
)

// Default generator configuration.
const (
	DefaultCount   = 200
	DefaultWorkers = 4
	DefaultDays    = 14
	filePerm       = 0o644
)

// ErrInvalidCount is returned for a non-positive event count.
var ErrInvalidCount = errors.New("event count must be positive")

// Montréal bounding box used for coordinates.
const (
	latMin, latSpan = 45.41, 0.29
	lonMin, lonSpan = -73.97, 0.48
)

var (
	boroughs = []string{
		"Ville-Marie", "Le Plateau-Mont-Royal", "Rosemont–La Petite-Patrie",
		"Verdun", "Outremont", "Côte-des-Neiges–Notre-Dame-de-Grâce",
		"Le Sud-Ouest", "Villeray–Saint-Michel–Parc-Extension", "Mercier–Hochelaga-Maisonneuve",
	}
	eventTypes = []string{"Musique", "Cinéma", "Théâtre", "Exposition", "Atelier", "Sport", "Conférence", "Festival"}
	audiences  = []string{"Grand public", "Adultes", "Famille", "Enfants", "Aînés"}
	venues     = []string{"Parc", "Bibliothèque", "Maison de la culture", "Salle de spectacle", "En ligne"}
	subjects   = []string{"jazz", "cinéma en plein air", "danse contemporaine", "atelier de poterie", "marché fermier",
		"lecture de contes", "yoga au parc", "conférence sur l'histoire", "photographie urbaine", "musique classique"}
	costs = []string{"Gratuit", "Gratuit", "10 $", "15,50 $", "25 $", "40 $", "Entrée libre, gratuit", ""}
)

// Config controls a generation run.
type Config struct {
	Count   int
	Workers int
	Days    int
	From    time.Time
	Seed    uint64
	Loc     *time.Location
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.Loc == nil {
		c.Loc = time.Local
	}
	if c.From.IsZero() {
		c.From = time.Now().In(c.Loc)
	}
	return c
}

// Generate builds cfg.Count events spread over cfg.Days from cfg.From.
// Output is deterministic for a given seed regardless of worker count.
func Generate(ctx context.Context, cfg Config) ([]model.Event, error) {
	if cfg.Count <= 0 {
		return nil, ErrInvalidCount
	}
	cfg = cfg.withDefaults()
	logger.Get().Info(ctx, "generating sample events",
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers))

	type result struct {
		index int
		event model.Event
		err   error
	}
	results := make(chan result, cfg.Count)

	workers := min(cfg.Workers, cfg.Count)
	per := cfg.Count / workers
	for w := 0; w < workers; w++ {
		start := w * per
		end := start + per
		if w == workers-1 {
			end = cfg.Count
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					results <- result{index: i, err: ctx.Err()}
					return
				default:
					results <- result{index: i, event: single(cfg, i)}
				}
			}
		}(start, end)
	}

	events := make([]model.Event, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generation cancelled: %w", ctx.Err())
		case r := <-results:
			if r.err != nil {
				return nil, fmt.Errorf("generate event %d: %w", r.index, r.err)
			}
			events[r.index] = r.event
		}
	}
	return events, nil
}

// single derives event i from its own random stream.
func single(cfg Config, i int) model.Event {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
	pick := func(s []string) string { return s[rng.IntN(len(s))] }

	subject := pick(subjects)
	borough := pick(boroughs)
	day := cfg.From.AddDate(0, 0, rng.IntN(cfg.Days))
	start := time.Date(day.Year(), day.Month(), day.Day(), 10+rng.IntN(12), 30*rng.IntN(2), 0, 0, cfg.Loc)
	cost := pick(costs)
	seedKey := strconv.FormatUint(cfg.Seed, 10) + "/" + strconv.Itoa(i)

	return model.Event{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("sortie-sample/"+seedKey)).String(),
		Title:       fmt.Sprintf("%s à %s", subject, borough),
		Description: fmt.Sprintf("Venez découvrir %s dans l'arrondissement %s.", subject, borough),
		URL:         "https://montreal.ca/evenements/" + seedKey,
		Audience:    pick(audiences),
		EventType:   pick(eventTypes),
		Borough:     borough,
		Venue:       pick(venues),
		VenueTitle:  pick(venues) + " " + borough,
		Cost:        cost,
		Price:       feed.ParsePrice(cost),
		Start:       start,
		End:         start.Add(time.Duration(1+rng.IntN(3)) * time.Hour),
		Lat:         model.Float(latMin + rng.Float64()*latSpan),
		Lon:         model.Float(lonMin + rng.Float64()*lonSpan),
	}
}

// Write generates events and writes them as a CSV export at path.
func Write(ctx context.Context, path string, cfg Config) (int, error) {
	events, err := Generate(ctx, cfg)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := feed.EncodeCSV(&buf, events); err != nil {
		return 0, fmt.Errorf("encode sample feed: %w", err)
	}
	if err := fileutil.WriteAtomic(path, buf.Bytes(), filePerm); err != nil {
		return 0, fmt.Errorf("write sample feed: %w", err)
	}
	logger.Get().Info(ctx, "sample feed written",
		logger.String("path", path),
		logger.Int("count", len(events)))
	return len(events), nil
}
