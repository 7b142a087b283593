package repository

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/okian/bullrun/internal/domain/hand"
	"github.com/okian/bullrun/pkg/metrics"
)

const defaultTopCacheSize = 100

// Snapshot is an immutable ranking built by one scoring pass.
type Snapshot struct {
	RoundID string
	BuiltAt time.Time
	// Entries holds every ranked player, best first.
	Entries []Entry
	// RankByPlayer answers rank lookups in O(1).
	RankByPlayer map[string]int
	// TopCache is the leading slice of Entries served to TopN.
	TopCache []Entry
}

// Ranker publishes leaderboard snapshots. Rebuild is called by the single
// engine writer; readers load the current snapshot without locking.
type Ranker struct {
	snapshot     atomic.Pointer[Snapshot]
	topCacheSize int
}

var _ Leaderboard = (*Ranker)(nil)

// NewRanker creates a Ranker holding an empty snapshot.
func NewRanker(opts ...RankerOption) *Ranker {
	r := &Ranker{topCacheSize: defaultTopCacheSize}
	for _, opt := range opts {
		opt(r)
	}
	r.snapshot.Store(&Snapshot{RankByPlayer: map[string]int{}})
	return r
}

// Order sorts hands by final score descending, then earlier submission,
// then player id, and assigns contiguous ranks from 1.
func Order(hands []*hand.Hand) []Entry {
	entries := make([]Entry, 0, len(hands))
	for _, h := range hands {
		entries = append(entries, Entry{
			PlayerID:         h.PlayerID,
			HandID:           h.ID,
			FinalScore:       h.FinalScore,
			BaseScore:        h.BaseScore,
			DuplicatePenalty: h.DuplicatePenalty,
			SubmittedAt:      h.SubmittedAt,
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Rebuild ranks hands from scratch and publishes the result.
func (r *Ranker) Rebuild(roundID string, hands []*hand.Hand, at time.Time) *Snapshot {
	start := time.Now()
	entries := Order(hands)
	ranks := make(map[string]int, len(entries))
	for _, e := range entries {
		ranks[e.PlayerID] = e.Rank
	}
	s := &Snapshot{
		RoundID:      roundID,
		BuiltAt:      at,
		Entries:      entries,
		RankByPlayer: ranks,
		TopCache:     entries[:min(r.topCacheSize, len(entries))],
	}
	r.snapshot.Store(s)
	metrics.RecordScoringPassLatency(float64(time.Since(start).Milliseconds()))
	return s
}

// Reset publishes an empty snapshot for roundID.
func (r *Ranker) Reset(roundID string, at time.Time) {
	r.snapshot.Store(&Snapshot{RoundID: roundID, BuiltAt: at, RankByPlayer: map[string]int{}})
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (r *Ranker) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Rank implements Leaderboard.
func (r *Ranker) Rank(_ context.Context, playerID string) (Entry, error) {
	s := r.snapshot.Load()
	rank, ok := s.RankByPlayer[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return s.Entries[rank-1], nil
}

// TopN implements Leaderboard.
func (r *Ranker) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s := r.snapshot.Load()
	src := s.TopCache
	if n > len(src) {
		src = s.Entries
	}
	return slices.Clone(src[:min(n, len(src))]), nil
}

// Count implements Leaderboard.
func (r *Ranker) Count(_ context.Context) int {
	return len(r.snapshot.Load().Entries)
}
