package cache

// MemoOption applies a configuration option to the Memo.
type MemoOption func(*Memo)

// WithMaxSize sets the maximum number of vectors kept in memory.
// If maxSize > 0: bounded mode with LRU eviction.
// If maxSize <= 0: unbounded mode.
func WithMaxSize(maxSize int) MemoOption {
	return func(m *Memo) {
		m.maxSize = maxSize
	}
}
