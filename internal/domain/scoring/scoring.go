// Package scoring computes the semantic similarity between events and the
// user's likes statement.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultBatchSize = 64
	defaultTimeout   = 30 * time.Second
)

// Embedder turns texts into vectors. Identical (text, model) pairs must
// yield identical vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Memo is a process-local vector cache keyed by Key.
type Memo interface {
	Get(key string) ([]float32, bool)
	Put(key string, vec []float32)
}

// VectorStore persists vectors across runs, keyed by Key.
type VectorStore interface {
	Lookup(ctx context.Context, keys []string) (map[string][]float32, error)
	Store(ctx context.Context, vectors map[string][]float32) error
}

// Report summarizes one scoring pass.
type Report struct {
	Texts     int // distinct non-blank texts needed
	MemoHits  int
	StoreHits int
	Embedded  int // texts embedded by the provider
	Failed    int // texts with no vector after retries
	Batches   int // provider calls, retries included

	// LikesUnavailable is set when the likes statement could not be
	// embedded; every event then scores 0.
	LikesUnavailable bool
	// ProviderDown is set when every provider call failed.
	ProviderDown bool

	// StoreErr and ProviderErr keep the last error of each kind.
	StoreErr    error
	ProviderErr error
}

// CacheHits is the number of texts served without the provider.
func (r Report) CacheHits() int { return r.MemoHits + r.StoreHits }

// Scorer assigns EmbeddingScore to events.
type Scorer struct {
	embedder  Embedder
	memo      Memo
	store     VectorStore
	batchSize int
	timeout   time.Duration
	descCap   int
}

// New creates a Scorer backed by embedder.
func New(embedder Embedder, opts ...Option) *Scorer {
	s := &Scorer{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		timeout:   defaultTimeout,
		descCap:   DefaultDescriptionCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score sets EmbeddingScore on every event in place. Events whose vector
// cannot be obtained score 0; provider and store failures are reported, not
// returned. The only error is cancellation of ctx.
func (s *Scorer) Score(ctx context.Context, events []model.Event, likes string) (Report, error) {
	var rep Report
	if len(events) == 0 {
		return rep, nil
	}
	modelID := s.embedder.Model()

	likes = strings.TrimSpace(likes)
	likesKey := Key(modelID, likes)
	eventKeys := make([]string, len(events))
	pending := make(map[string]string, len(events)+1) // key -> text
	order := make([]string, 0, len(events)+1)
	want := func(key, text string) {
		if text == "" {
			return
		}
		if _, ok := pending[key]; !ok {
			pending[key] = text
			order = append(order, key)
		}
	}
	want(likesKey, likes)
	for i := range events {
		text := CanonicalText(&events[i], s.descCap)
		if text == "" {
			continue
		}
		eventKeys[i] = Key(modelID, text)
		want(eventKeys[i], text)
	}
	rep.Texts = len(order)

	vectors := make(map[string][]float32, len(order))
	missing := s.fromMemo(order, vectors, &rep)
	missing = s.fromStore(ctx, missing, vectors, &rep)

	fresh, err := s.embed(ctx, missing, pending, &rep)
	if err != nil {
		return rep, err
	}
	for k, v := range fresh {
		vectors[k] = v
		if s.memo != nil {
			s.memo.Put(k, v)
		}
	}
	if s.store != nil && len(fresh) > 0 {
		if err := s.store.Store(ctx, fresh); err != nil {
			rep.StoreErr = err
		}
	}
	rep.Failed = len(order) - len(vectors)

	likesVec, ok := vectors[likesKey]
	if likes == "" || !ok {
		rep.LikesUnavailable = true
	}
	for i := range events {
		events[i].EmbeddingScore = 0
		if rep.LikesUnavailable || eventKeys[i] == "" {
			continue
		}
		if v, ok := vectors[eventKeys[i]]; ok {
			events[i].EmbeddingScore = Cosine(likesVec, v)
		}
	}
	return rep, nil
}

func (s *Scorer) fromMemo(keys []string, into map[string][]float32, rep *Report) []string {
	if s.memo == nil {
		return keys
	}
	missing := keys[:0:0]
	for _, k := range keys {
		if v, ok := s.memo.Get(k); ok {
			into[k] = v
			rep.MemoHits++
			continue
		}
		missing = append(missing, k)
	}
	return missing
}

func (s *Scorer) fromStore(ctx context.Context, keys []string, into map[string][]float32, rep *Report) []string {
	if s.store == nil || len(keys) == 0 {
		return keys
	}
	found, err := s.store.Lookup(ctx, keys)
	if err != nil {
		rep.StoreErr = err
		return keys
	}
	missing := keys[:0:0]
	for _, k := range keys {
		if v, ok := found[k]; ok && len(v) > 0 {
			into[k] = v
			if s.memo != nil {
				s.memo.Put(k, v)
			}
			rep.StoreHits++
			continue
		}
		missing = append(missing, k)
	}
	return missing
}

// embed requests vectors for keys in chunks. A failed chunk is retried one
// text at a time so a single bad text cannot sink its neighbours.
func (s *Scorer) embed(ctx context.Context, keys []string, texts map[string]string, rep *Report) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	calls, failures := 0, 0
	for start := 0; start < len(keys); start += s.batchSize {
		end := min(start+s.batchSize, len(keys))
		chunk := keys[start:end]

		vecs, err := s.call(ctx, chunk, texts)
		calls++
		if err == nil {
			for i, k := range chunk {
				out[k] = vecs[i]
			}
			continue
		}
		if ctx.Err() != nil {
			rep.Batches = calls
			return out, fmt.Errorf("embedding cancelled: %w", ctx.Err())
		}
		failures++
		rep.ProviderErr = err
		if len(chunk) == 1 {
			continue
		}
		for _, k := range chunk {
			vecs, err := s.call(ctx, []string{k}, texts)
			calls++
			if err != nil {
				if ctx.Err() != nil {
					rep.Batches = calls
					return out, fmt.Errorf("embedding cancelled: %w", ctx.Err())
				}
				failures++
				rep.ProviderErr = err
				continue
			}
			out[k] = vecs[0]
		}
	}
	rep.Batches = calls
	rep.Embedded = len(out)
	rep.ProviderDown = calls > 0 && failures == calls
	return out, nil
}

func (s *Scorer) call(ctx context.Context, keys []string, texts map[string]string) ([][]float32, error) {
	batch := make([]string, len(keys))
	for i, k := range keys {
		batch[i] = texts[k]
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vecs, err := s.embedder.EmbedBatch(callCtx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrShortBatch, len(vecs), len(batch))
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return nil, ErrEmptyVector
		}
	}
	return vecs, nil
}
