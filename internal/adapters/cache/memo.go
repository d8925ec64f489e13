// Package cache holds the embedding vector caches: a bounded in-process memo
// and two persistent stores (JSON snapshot file and BadgerDB).
package cache

import (
	"sync"
	"sync/atomic"
)

const defaultMemoSize = 50_000

// node is an entry of the recency list.
type node struct {
	key        string
	vec        []float32
	prev, next *node
}

func (n *node) reset() {
	n.key = ""
	n.vec = nil
	n.prev, n.next = nil, nil
}

// Memo is a thread-safe vector cache. In bounded mode (maxSize > 0) the least
// recently used entry is evicted; otherwise it grows without limit.
type Memo struct {
	mu       sync.Mutex
	entries  map[string]*node
	head     *node // most recently used
	tail     *node // least recently used
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewMemo creates a Memo with configuration options.
func NewMemo(opts ...MemoOption) *Memo {
	m := &Memo{maxSize: defaultMemoSize}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = make(map[string]*node)
	m.nodePool = sync.Pool{New: func() interface{} { return &node{} }}
	return m
}

// Get returns the vector stored under key and marks it recently used.
func (m *Memo) Get(key string) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.moveToFront(n)
	return n.vec, true
}

// Put stores vec under key, evicting the oldest entry when full.
func (m *Memo) Put(key string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.entries[key]; ok {
		n.vec = vec
		m.moveToFront(n)
		return
	}
	if m.maxSize > 0 && len(m.entries) >= m.maxSize {
		m.evictOldest()
	}
	n := m.nodePool.Get().(*node)
	n.key, n.vec = key, vec
	m.pushFront(n)
	m.entries[key] = n
	m.size.Add(1)
}

// Size returns the number of cached vectors.
func (m *Memo) Size() int64 {
	return m.size.Load()
}

// Must be called with m.mu held.
func (m *Memo) pushFront(n *node) {
	n.prev = nil
	n.next = m.head
	if m.head != nil {
		m.head.prev = n
	}
	m.head = n
	if m.tail == nil {
		m.tail = n
	}
}

// Must be called with m.mu held.
func (m *Memo) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		m.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		m.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// Must be called with m.mu held.
func (m *Memo) moveToFront(n *node) {
	if m.head == n {
		return
	}
	m.unlink(n)
	m.pushFront(n)
}

// Must be called with m.mu held.
func (m *Memo) evictOldest() {
	n := m.tail
	if n == nil {
		return
	}
	m.unlink(n)
	delete(m.entries, n.key)
	n.reset()
	m.nodePool.Put(n)
	m.size.Add(-1)
}
