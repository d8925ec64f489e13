package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sortie/internal/adapters/summarizer"
	service "github.com/okian/sortie/internal/app"
	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/internal/domain/scoring"
	"github.com/okian/sortie/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var (
	now         = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	errUpstream = errors.New("upstream down")
)

type staticSource struct {
	events []model.Event
	err    error
}

func (s *staticSource) Fetch(context.Context) ([]model.Event, error) {
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out, s.err
}

// fixedEmbedder maps known texts to vectors; unknown texts get an
// orthogonal vector.
type fixedEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	down    bool
	calls   int
}

func (f *fixedEmbedder) Model() string { return "fixed" }

func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return nil, errUpstream
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

type brokenSummarizer struct{}

func (brokenSummarizer) Select(context.Context, []model.Event, model.Preferences, int) ([]int, error) {
	return nil, errUpstream
}

func (brokenSummarizer) Compose(context.Context, []model.Event, time.Time) (string, error) {
	return "", errUpstream
}

func (brokenSummarizer) Model() string { return "broken" }

type memPublisher struct {
	published []string
}

func (m *memPublisher) Publish(_ context.Context, md string) (string, error) {
	m.published = append(m.published, md)
	return "mem://digest.md", nil
}

type memCheckpoint struct {
	last  time.Time
	saved []time.Time
}

func (m *memCheckpoint) Load() (time.Time, error) { return m.last, nil }
func (m *memCheckpoint) Save(t time.Time) error  { m.saved = append(m.saved, t); return nil }

type fixedWeather struct{}

func (fixedWeather) Enrich(_ context.Context, events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	for i := range out {
		out[i].TempC = model.Float(12)
	}
	return out
}

func feedEvents() []model.Event {
	day := now.Add(24 * time.Hour)
	return []model.Event{
		{ID: "1", Title: "Jazz", URL: "https://ex.org/1", Borough: "Ville-Marie", EventType: "Musique", Start: day, Price: model.Float(0)},
		{ID: "2", Title: "Rock", URL: "https://ex.org/2", Borough: "Outremont", EventType: "Musique", Start: day, Price: model.Float(20)},
		{ID: "3", Title: "Folk", URL: "https://ex.org/3", Borough: "Verdun", EventType: "Musique", Start: day},
		{ID: "4", Title: "Opera", URL: "https://ex.org/4", Borough: "Ville-Marie", EventType: "Musique", Start: day, Price: model.Float(75)},
		{ID: "5", Title: "Soccer", URL: "https://ex.org/5", Borough: "Verdun", EventType: "Sport", Start: day},
		{ID: "6", Title: "Old", URL: "https://ex.org/6", Borough: "Verdun", EventType: "Musique", Start: now.Add(-24 * time.Hour)},
	}
}

func prefs() model.Preferences {
	return model.Preferences{
		Likes: "jazz",
		HardFilters: model.HardFilters{
			TypeAllow:    []string{"Musique"},
			BoroughAllow: []string{"Ville-Marie", "Outremont", "Verdun"},
			MaxPrice:     model.Float(50),
		},
	}
}

func embedder() *fixedEmbedder {
	return &fixedEmbedder{vectors: map[string][]float32{
		"jazz": {1, 0, 0},
		"Jazz": {1, 0, 0},
		"Rock": {0.6, 0.8, 0},
		"Folk": {0, 1, 0},
	}}
}

func newService(src service.Source, emb scoring.Embedder, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithSource(src),
		service.WithScorer(scoring.New(emb)),
		service.WithClock(func() time.Time { return now }),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a service without a source", t, func() {
		svc := service.New()

		Convey("Then a run is refused", func() {
			_, err := svc.Run(context.Background(), prefs(), service.RunOptions{})
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("And no run has been recorded", func() {
			_, ok := svc.LastRun()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestService_Rank(t *testing.T) {
	Convey("Given the feed and a profile allowing Musique under 50", t, func() {
		svc := newService(&staticSource{}, embedder())
		sl, err := svc.Rank(context.Background(), prefs(), feedEvents(), service.RunOptions{})
		So(err, ShouldBeNil)

		Convey("Then priced-out, off-type and past events are dropped", func() {
			ids := make([]string, 0, len(sl.Events))
			for _, e := range sl.Events {
				ids = append(ids, e.ID)
			}
			So(ids, ShouldResemble, []string{"1", "2", "3"})
			So(sl.Filter.Input, ShouldEqual, 6)
			So(sl.Filter.Kept, ShouldEqual, 3)
		})

		Convey("Then borough preference follows list position", func() {
			So(sl.Events[0].BoroughPref, ShouldAlmostEqual, 1.0)
			So(sl.Events[1].BoroughPref, ShouldAlmostEqual, 2.0/3.0)
			So(sl.Events[2].BoroughPref, ShouldAlmostEqual, 1.0/3.0)
		})

		Convey("Then the combined score blends 0.7 and 0.3", func() {
			e := sl.Events[0]
			So(e.EmbeddingScore, ShouldAlmostEqual, 1.0, 1e-6)
			So(e.CombinedScore, ShouldAlmostEqual, 0.7*e.EmbeddingScore+0.3*e.BoroughPref, 1e-9)
		})
	})

	Convey("Given a shortlist length of 2", t, func() {
		svc := newService(&staticSource{}, embedder(), service.WithTopK(2))
		sl, err := svc.Rank(context.Background(), prefs(), feedEvents(), service.RunOptions{})
		So(err, ShouldBeNil)
		So(sl.Events, ShouldHaveLength, 2)
	})

	Convey("Given the input slice", t, func() {
		events := feedEvents()
		svc := newService(&staticSource{}, embedder())
		_, err := svc.Rank(context.Background(), prefs(), events, service.RunOptions{})
		So(err, ShouldBeNil)
		So(events[0].CombinedScore, ShouldEqual, 0)
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a fully wired service", t, func() {
		pub := &memPublisher{}
		cp := &memCheckpoint{}
		svc := newService(&staticSource{events: feedEvents()}, embedder(),
			service.WithPublisher(pub),
			service.WithCheckpoint(cp),
			service.WithEnricher(fixedWeather{}),
			service.WithTopN(2),
		)

		res, err := svc.Run(context.Background(), prefs(), service.RunOptions{})
		So(err, ShouldBeNil)

		Convey("Then the top events are selected and enriched", func() {
			So(res.Fetched, ShouldEqual, 6)
			So(res.Selected, ShouldHaveLength, 2)
			So(res.Selected[0].ID, ShouldEqual, "1")
			So(*res.Selected[0].TempC, ShouldAlmostEqual, 12.0)
			So(res.Warnings, ShouldBeEmpty)
			So(res.ModelUsed, ShouldEqual, "fallback")
		})

		Convey("Then the digest is published and the run checkpointed", func() {
			So(pub.published, ShouldHaveLength, 1)
			So(pub.published[0], ShouldContainSubstring, "# Montréal Events — Week of 2026-10-19")
			So(pub.published[0], ShouldContainSubstring, "**Jazz**")
			So(res.ReportPath, ShouldEqual, "mem://digest.md")
			So(cp.saved, ShouldResemble, []time.Time{now})
		})

		Convey("Then the run is summarized for stats", func() {
			last, ok := svc.LastRun()
			So(ok, ShouldBeTrue)
			So(last.RunID, ShouldEqual, res.RunID)
			So(last.Shortlist, ShouldEqual, 3)
			So(last.Selected, ShouldEqual, 2)
			So(last.Outcome, ShouldEqual, "ok")
		})
	})

	Convey("Given a profile nothing matches", t, func() {
		pub := &memPublisher{}
		svc := newService(&staticSource{events: feedEvents()}, embedder(), service.WithPublisher(pub))
		p := prefs()
		p.HardFilters.BoroughAllow = []string{"Lachine"}

		res, err := svc.Run(context.Background(), p, service.RunOptions{})

		Convey("Then the run succeeds with an empty-result warning", func() {
			So(err, ShouldBeNil)
			So(res.HasWarning(service.WarnEmptyResult), ShouldBeTrue)
			So(res.Shortlist.Events, ShouldBeEmpty)
			So(pub.published[0], ShouldContainSubstring, summarizer.NoEventsLine)
		})
	})

	Convey("Given an embedding provider that is down", t, func() {
		emb := embedder()
		emb.down = true
		svc := newService(&staticSource{events: feedEvents()}, emb)

		res, err := svc.Run(context.Background(), prefs(), service.RunOptions{DryRun: true})

		Convey("Then events survive on borough preference alone", func() {
			So(err, ShouldBeNil)
			So(res.HasWarning(service.WarnProviderUnavailable), ShouldBeTrue)
			So(res.Warnings[0].Message, ShouldStartWith, "embedding provider unavailable; ")
			So(res.Warnings[0].Message, ShouldEndWith, " texts not embedded")
			So(res.Shortlist.Events, ShouldHaveLength, 3)
			for _, e := range res.Shortlist.Events {
				So(e.EmbeddingScore, ShouldEqual, 0)
			}
			So(res.Shortlist.Events[0].Borough, ShouldEqual, "Ville-Marie")
		})
	})

	Convey("Given shortlisted events without a URL or sharing one", t, func() {
		day := now.Add(24 * time.Hour)
		events := []model.Event{
			{ID: "a", Title: "Jazz", Borough: "Ville-Marie", EventType: "Musique", Start: day},
			{ID: "b", Title: "Blues", URL: "https://ex.org/same", Borough: "Ville-Marie", EventType: "Musique", Start: day},
			{ID: "c", Title: "Soul", URL: "https://ex.org/same", Borough: "Outremont", EventType: "Musique", Start: day},
			{ID: "d", Title: "Funk", Borough: "Verdun", EventType: "Musique", Start: day},
		}
		svc := newService(&staticSource{events: events}, embedder())
		res, err := svc.Run(context.Background(), prefs(), service.RunOptions{DryRun: true, TopK: 4, TopN: 4})

		Convey("Then the digest holds the whole shortlist in rank order", func() {
			So(err, ShouldBeNil)
			So(res.Shortlist.Events, ShouldHaveLength, 4)
			So(res.Selected, ShouldHaveLength, 4)
			for i := range res.Selected {
				So(res.Selected[i].ID, ShouldEqual, res.Shortlist.Events[i].ID)
			}
			So(res.Markdown, ShouldContainSubstring, "**Funk**")
			So(res.Markdown, ShouldContainSubstring, "**Soul**")
		})
	})

	Convey("Given a summarizer that fails", t, func() {
		svc := newService(&staticSource{events: feedEvents()}, embedder(),
			service.WithSummarizer(brokenSummarizer{}),
			service.WithTopN(2),
		)
		res, err := svc.Run(context.Background(), prefs(), service.RunOptions{DryRun: true})

		Convey("Then rank order and the plain digest are used", func() {
			So(err, ShouldBeNil)
			So(res.HasWarning(service.WarnSummarizerFallback), ShouldBeTrue)
			So(res.Selected, ShouldHaveLength, 2)
			So(res.Selected[0].ID, ShouldEqual, "1")
			So(res.Markdown, ShouldContainSubstring, "## Top Picks")
			So(res.ModelUsed, ShouldEqual, "fallback")
		})
	})

	Convey("Given a feed that cannot be fetched", t, func() {
		pub := &memPublisher{}
		svc := newService(&staticSource{err: errUpstream}, embedder(), service.WithPublisher(pub))
		_, err := svc.Run(context.Background(), prefs(), service.RunOptions{})

		Convey("Then the run fails and nothing is published", func() {
			So(errors.Is(err, service.ErrFetch), ShouldBeTrue)
			So(pub.published, ShouldBeEmpty)
			last, ok := svc.LastRun()
			So(ok, ShouldBeTrue)
			So(last.Outcome, ShouldEqual, "error")
		})
	})

	Convey("Given incremental mode with a previous run", t, func() {
		cp := &memCheckpoint{last: now.Add(36 * time.Hour)}
		svc := newService(&staticSource{events: feedEvents()}, embedder(),
			service.WithCheckpoint(cp),
			service.WithIncremental(true),
		)
		res, err := svc.Run(context.Background(), prefs(), service.RunOptions{DryRun: true})

		Convey("Then events before the checkpoint are skipped", func() {
			So(err, ShouldBeNil)
			So(res.Shortlist.Events, ShouldBeEmpty)
			So(res.HasWarning(service.WarnEmptyResult), ShouldBeTrue)
		})

		Convey("Then a dry run does not move the checkpoint", func() {
			So(cp.saved, ShouldBeEmpty)
		})
	})
}
