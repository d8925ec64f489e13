package scoring_test

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/internal/domain/scoring"
)

var errProvider = errors.New("provider unavailable")

// stubEmbedder returns fixed vectors for known texts and a hash-derived
// vector otherwise. Texts containing a failing token make their batch fail.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  string
	down    bool
	calls   int
	texts   []string
}

func (s *stubEmbedder) Model() string { return "stub-v1" }

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, texts...)
	if s.down {
		return nil, errProvider
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if s.failOn != "" && strings.Contains(t, s.failOn) {
			return nil, errProvider
		}
		if v, ok := s.vectors[t]; ok {
			out[i] = v
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		x := float32(h.Sum32()%1000) / 1000
		out[i] = []float32{x, 1 - x, 0.5}
	}
	return out, nil
}

type mapMemo map[string][]float32

func (m mapMemo) Get(k string) ([]float32, bool) { v, ok := m[k]; return v, ok }
func (m mapMemo) Put(k string, v []float32)      { m[k] = v }

type mapStore struct {
	data      map[string][]float32
	lookupErr error
	stored    int
}

func (m *mapStore) Lookup(_ context.Context, keys []string) (map[string][]float32, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := map[string][]float32{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mapStore) Store(_ context.Context, vectors map[string][]float32) error {
	for k, v := range vectors {
		m.data[k] = v
		m.stored++
	}
	return nil
}

func TestCanonicalText(t *testing.T) {
	Convey("Given events with various texts", t, func() {
		Convey("Then title and description are joined", func() {
			So(scoring.CanonicalText(&model.Event{Title: "Jazz", Description: "Concert"}, 300), ShouldEqual, "Jazz | Concert")
		})

		Convey("Then blank parts are skipped", func() {
			So(scoring.CanonicalText(&model.Event{Title: " Jazz "}, 300), ShouldEqual, "Jazz")
			So(scoring.CanonicalText(&model.Event{Description: "Concert"}, 300), ShouldEqual, "Concert")
			So(scoring.CanonicalText(&model.Event{}, 300), ShouldEqual, "")
		})

		Convey("Then long descriptions are cut on runes with an ellipsis", func() {
			desc := strings.Repeat("é", 310)
			got := scoring.CanonicalText(&model.Event{Title: "T", Description: desc}, 300)
			So(got, ShouldEqual, "T | "+strings.Repeat("é", 300)+"…")
		})

		Convey("Then a description at the cap is kept whole", func() {
			desc := strings.Repeat("a", 300)
			So(scoring.CanonicalText(&model.Event{Description: desc}, 300), ShouldEqual, desc)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given cache keys", t, func() {
		Convey("Then they depend on both model and text", func() {
			So(scoring.Key("m", "a"), ShouldEqual, scoring.Key("m", "a"))
			So(scoring.Key("m", "a"), ShouldNotEqual, scoring.Key("n", "a"))
			So(scoring.Key("m", "ab"), ShouldNotEqual, scoring.Key("ma", "b"))
			So(len(scoring.Key("m", "a")), ShouldEqual, 64)
		})
	})
}

func TestCosine(t *testing.T) {
	Convey("Given vector pairs", t, func() {
		Convey("Then identical directions score 1 and opposite -1", func() {
			So(scoring.Cosine([]float32{1, 2}, []float32{2, 4}), ShouldAlmostEqual, 1, 1e-9)
			So(scoring.Cosine([]float32{1, 0}, []float32{-1, 0}), ShouldAlmostEqual, -1, 1e-9)
			So(scoring.Cosine([]float32{1, 0}, []float32{0, 1}), ShouldAlmostEqual, 0, 1e-9)
		})

		Convey("Then degenerate inputs score 0", func() {
			So(scoring.Cosine(nil, nil), ShouldEqual, 0)
			So(scoring.Cosine([]float32{0, 0}, []float32{1, 1}), ShouldEqual, 0)
			So(scoring.Cosine([]float32{1}, []float32{1, 1}), ShouldEqual, 0)
		})

		Convey("Then results stay inside [-1, 1]", func() {
			v := []float32{0.1, 0.2, 0.3}
			So(scoring.Cosine(v, v), ShouldBeBetweenOrEqual, -1, 1)
		})
	})
}

func TestScorer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scorer with fixed vectors", t, func() {
		emb := &stubEmbedder{vectors: map[string][]float32{
			"jazz":           {1, 0},
			"Jazz night":     {1, 0},
			"Hockey":         {0, 1},
			"Anti | reverse": {-1, 0},
		}}
		s := scoring.New(emb)
		events := []model.Event{
			{ID: "1", Title: "Jazz night"},
			{ID: "2", Title: "Hockey"},
			{ID: "3", Title: "Anti", Description: "reverse"},
		}

		rep, err := s.Score(ctx, events, "jazz")

		Convey("Then scores are the cosine against the likes vector", func() {
			So(err, ShouldBeNil)
			So(events[0].EmbeddingScore, ShouldAlmostEqual, 1, 1e-9)
			So(events[1].EmbeddingScore, ShouldAlmostEqual, 0, 1e-9)
			So(events[2].EmbeddingScore, ShouldAlmostEqual, -1, 1e-9)
			So(rep.Texts, ShouldEqual, 4)
			So(rep.Embedded, ShouldEqual, 4)
			So(rep.Failed, ShouldEqual, 0)
			So(rep.Batches, ShouldEqual, 1)
		})
	})

	Convey("Given duplicate texts in one run", t, func() {
		emb := &stubEmbedder{}
		s := scoring.New(emb)
		events := []model.Event{{Title: "Same"}, {Title: "Same"}, {Title: "Other"}}

		_, err := s.Score(ctx, events, "likes")

		Convey("Then each distinct text is requested once", func() {
			So(err, ShouldBeNil)
			So(emb.texts, ShouldResemble, []string{"likes", "Same", "Other"})
			So(events[0].EmbeddingScore, ShouldEqual, events[1].EmbeddingScore)
		})
	})

	Convey("Given a small batch size", t, func() {
		emb := &stubEmbedder{}
		s := scoring.New(emb, scoring.WithBatchSize(2))
		events := []model.Event{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}}

		rep, _ := s.Score(ctx, events, "likes")

		Convey("Then texts are sent in chunks", func() {
			So(emb.calls, ShouldEqual, 3)
			So(rep.Batches, ShouldEqual, 3)
		})
	})

	Convey("Given a memo shared across runs", t, func() {
		emb := &stubEmbedder{}
		memo := mapMemo{}
		s := scoring.New(emb, scoring.WithMemo(memo))
		first := []model.Event{{Title: "Jazz"}, {Title: "Blues"}}
		second := []model.Event{{Title: "Jazz"}, {Title: "Blues"}}

		_, _ = s.Score(ctx, first, "likes")
		callsAfterFirst := emb.calls
		rep, err := s.Score(ctx, second, "likes")

		Convey("Then the second run makes no provider call and scores identically", func() {
			So(err, ShouldBeNil)
			So(emb.calls, ShouldEqual, callsAfterFirst)
			So(rep.MemoHits, ShouldEqual, 3)
			So(rep.CacheHits(), ShouldEqual, 3)
			So(second[0].EmbeddingScore, ShouldEqual, first[0].EmbeddingScore)
			So(second[1].EmbeddingScore, ShouldEqual, first[1].EmbeddingScore)
		})
	})

	Convey("Given a persistent store", t, func() {
		emb := &stubEmbedder{}
		store := &mapStore{data: map[string][]float32{}}

		_, _ = scoring.New(emb, scoring.WithStore(store)).Score(ctx, []model.Event{{Title: "Jazz"}}, "likes")

		Convey("Then new vectors are written and a fresh scorer reads them back", func() {
			So(store.stored, ShouldEqual, 2)
			calls := emb.calls
			rep, err := scoring.New(emb, scoring.WithStore(store)).Score(ctx, []model.Event{{Title: "Jazz"}}, "likes")
			So(err, ShouldBeNil)
			So(emb.calls, ShouldEqual, calls)
			So(rep.StoreHits, ShouldEqual, 2)
		})

		Convey("Then a failing lookup falls back to the provider", func() {
			store.lookupErr = errors.New("disk gone")
			rep, err := scoring.New(emb, scoring.WithStore(store)).Score(ctx, []model.Event{{Title: "Jazz"}}, "likes")
			So(err, ShouldBeNil)
			So(rep.StoreErr, ShouldNotBeNil)
			So(rep.Embedded, ShouldEqual, 2)
		})
	})

	Convey("Given a provider that fails for one event", t, func() {
		emb := &stubEmbedder{failOn: "Broken"}
		s := scoring.New(emb)
		events := []model.Event{{ID: "ok", Title: "Jazz"}, {ID: "bad", Title: "Broken"}, {ID: "ok2", Title: "Folk"}}

		rep, err := s.Score(ctx, events, "likes")

		Convey("Then that event scores 0 and stays in the list", func() {
			So(err, ShouldBeNil)
			So(len(events), ShouldEqual, 3)
			So(events[1].ID, ShouldEqual, "bad")
			So(events[1].EmbeddingScore, ShouldEqual, 0)
			So(events[0].EmbeddingScore, ShouldNotEqual, 0)
			So(rep.Failed, ShouldEqual, 1)
			So(rep.Embedded, ShouldEqual, 3)
			So(rep.ProviderDown, ShouldBeFalse)
			So(errors.Is(rep.ProviderErr, errProvider), ShouldBeTrue)
		})
	})

	Convey("Given a provider that is down", t, func() {
		emb := &stubEmbedder{down: true}
		events := []model.Event{{Title: "Jazz"}, {Title: "Folk"}}

		rep, err := scoring.New(emb).Score(ctx, events, "likes")

		Convey("Then every event scores 0 and the run is flagged", func() {
			So(err, ShouldBeNil)
			So(events[0].EmbeddingScore, ShouldEqual, 0)
			So(events[1].EmbeddingScore, ShouldEqual, 0)
			So(rep.ProviderDown, ShouldBeTrue)
			So(rep.LikesUnavailable, ShouldBeTrue)
		})
	})

	Convey("Given the likes text cannot be embedded", t, func() {
		emb := &stubEmbedder{failOn: "likes"}
		events := []model.Event{{Title: "Jazz"}}

		rep, err := scoring.New(emb).Score(ctx, events, "likes")

		Convey("Then all events fall back to 0", func() {
			So(err, ShouldBeNil)
			So(rep.LikesUnavailable, ShouldBeTrue)
			So(rep.ProviderDown, ShouldBeFalse)
			So(events[0].EmbeddingScore, ShouldEqual, 0)
		})
	})

	Convey("Given an event with no text", t, func() {
		emb := &stubEmbedder{}
		events := []model.Event{{ID: "blank"}, {Title: "Jazz"}}

		rep, _ := scoring.New(emb).Score(ctx, events, "likes")

		Convey("Then it scores 0 without reaching the provider", func() {
			So(events[0].EmbeddingScore, ShouldEqual, 0)
			So(emb.texts, ShouldResemble, []string{"likes", "Jazz"})
			So(rep.Texts, ShouldEqual, 2)
		})
	})

	Convey("Given a cancelled context", t, func() {
		emb := &stubEmbedder{down: true}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := scoring.New(emb).Score(cctx, []model.Event{{Title: "Jazz"}}, "likes")

		Convey("Then scoring stops with the context error", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a slow provider and a short timeout", t, func() {
		slow := slowEmbedder{delay: 200 * time.Millisecond}
		events := []model.Event{{Title: "Jazz"}}

		rep, err := scoring.New(slow, scoring.WithTimeout(10*time.Millisecond)).Score(ctx, events, "likes")

		Convey("Then the call is abandoned and the event scores 0", func() {
			So(err, ShouldBeNil)
			So(rep.ProviderDown, ShouldBeTrue)
			So(events[0].EmbeddingScore, ShouldEqual, 0)
		})
	})

	Convey("Given no events", t, func() {
		emb := &stubEmbedder{}
		rep, err := scoring.New(emb).Score(ctx, nil, "likes")

		Convey("Then nothing is requested", func() {
			So(err, ShouldBeNil)
			So(rep.Texts, ShouldEqual, 0)
			So(emb.calls, ShouldEqual, 0)
		})
	})
}

type slowEmbedder struct{ delay time.Duration }

func (slowEmbedder) Model() string { return "slow" }

func (s slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case <-time.After(s.delay):
		return make([][]float32, len(texts)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
