package scoring

import "time"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBatchSize sets how many texts go in one provider call.
func WithBatchSize(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDescriptionCap sets how many description runes are embedded.
func WithDescriptionCap(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.descCap = n
		}
	}
}

// WithMemo attaches a process-local vector cache.
func WithMemo(m Memo) Option {
	return func(s *Scorer) {
		s.memo = m
	}
}

// WithStore attaches a persistent vector store.
func WithStore(vs VectorStore) Option {
	return func(s *Scorer) {
		s.store = vs
	}
}
