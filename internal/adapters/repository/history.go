package repository

import (
	"slices"
	"sync"

	"github.com/okian/bullrun/internal/domain/reward"
	"github.com/okian/bullrun/internal/domain/round"
)

const defaultHistoryCapacity = 30

// Record archives one finished round.
type Record struct {
	Round        round.Round         `json:"round"`
	Standings    []Entry             `json:"standings"`
	Distribution reward.Distribution `json:"distribution"`
	// Error is set when reward computation failed for the round.
	Error string `json:"error,omitempty"`
}

// History keeps the most recent finished rounds, evicting the oldest.
type History struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

// NewHistory creates an empty History.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{capacity: defaultHistoryCapacity}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add archives rec.
func (h *History) Add(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if over := len(h.records) - h.capacity; over > 0 {
		h.records = slices.Delete(h.records, 0, over)
	}
}

// List returns archived rounds, newest first.
func (h *History) List() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := slices.Clone(h.records)
	slices.Reverse(out)
	return out
}

// Get returns the archived round with the given id.
func (h *History) Get(roundID string) (Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.records {
		if r.Round.ID == roundID {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Len returns the number of archived rounds.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
