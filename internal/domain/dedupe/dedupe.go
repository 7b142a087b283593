// Package dedupe tracks request ids for idempotent operations and remembers
// the result produced the first time each id was seen.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper records seen request ids together with their first result.
type Deduper[V any] interface {
	// Lookup returns the result recorded for id, if any.
	Lookup(ctx context.Context, id string) (V, bool)

	// Record stores v for id unless id is already present. It returns the
	// stored value and whether id had been seen before.
	Record(ctx context.Context, id string, v V) (V, bool)

	// Unrecord forgets id so it can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry[V any] struct {
	v   V
	seq uint64
}

type slot struct {
	id  string
	seq uint64
}

// Store implements Deduper with a map and a FIFO ring of insertion order.
// With maxSize <= 0 it is unbounded.
type Store[V any] struct {
	mu      sync.Mutex
	seen    map[string]entry[V]
	order   []slot // insertion order, head at order[head]
	head    int
	seq     uint64
	maxSize int
	size    atomic.Int64
}

// Option applies a configuration option to the Store.
type Option func(*options)

type options struct {
	maxSize int
}

// WithMaxSize bounds the number of remembered ids. The oldest id is evicted
// first. Zero or negative means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// New creates a Store.
func New[V any](opts ...Option) *Store[V] {
	o := options{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{
		seen:    make(map[string]entry[V]),
		maxSize: o.maxSize,
	}
}

// Lookup implements Deduper.
func (s *Store[V]) Lookup(_ context.Context, id string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.seen[id]
	return e.v, ok
}

// Record implements Deduper.
func (s *Store[V]) Record(_ context.Context, id string, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.seen[id]; ok {
		return e.v, true
	}

	if s.maxSize > 0 {
		for len(s.seen) >= s.maxSize {
			s.evictOldest()
		}
		s.seq++
		s.order = append(s.order, slot{id: id, seq: s.seq})
	}
	s.seen[id] = entry[V]{v: v, seq: s.seq}
	s.size.Add(1)
	return v, false
}

// Unrecord implements Deduper. The id's ring slot is left behind and skipped
// on eviction because its sequence no longer matches.
func (s *Store[V]) Unrecord(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		delete(s.seen, id)
		s.size.Add(-1)
	}
}

// Size implements Deduper.
func (s *Store[V]) Size() int64 {
	return s.size.Load()
}

// evictOldest drops the oldest live id. Must be called with s.mu held.
func (s *Store[V]) evictOldest() {
	for s.head < len(s.order) {
		sl := s.order[s.head]
		s.order[s.head] = slot{}
		s.head++
		if e, ok := s.seen[sl.id]; ok && e.seq == sl.seq {
			delete(s.seen, sl.id)
			s.size.Add(-1)
			break
		}
	}
	// compact once the dead prefix dominates
	if s.head > len(s.order)/2 {
		s.order = append(s.order[:0], s.order[s.head:]...)
		s.head = 0
	}
}
