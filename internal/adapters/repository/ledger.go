package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/okian/bullrun/internal/domain/hand"
)

// Ledger holds one hand per player for the current round.
type Ledger struct {
	mu    sync.RWMutex
	hands map[string]*hand.Hand
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{hands: make(map[string]*hand.Hand)}
}

// Add stores h. A player may hold only one hand per round.
func (l *Ledger) Add(h *hand.Hand) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hands[h.PlayerID]; ok {
		return fmt.Errorf("%w: player %s", hand.ErrHandExists, h.PlayerID)
	}
	l.hands[h.PlayerID] = h
	return nil
}

// Has reports whether the player holds a hand.
func (l *Ledger) Has(playerID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.hands[playerID]
	return ok
}

// Get returns a copy of the player's hand.
func (l *Ledger) Get(playerID string) (*hand.Hand, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.hands[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

// Update applies fn to every stored hand in player order. Only score fields
// may be changed by fn.
func (l *Ledger) Update(fn func(h *hand.Hand)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.idsLocked() {
		fn(l.hands[id])
	}
}

// Hands returns copies of all hands in player order.
func (l *Ledger) Hands() []*hand.Hand {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*hand.Hand, 0, len(l.hands))
	for _, id := range l.idsLocked() {
		out = append(out, l.hands[id].Clone())
	}
	return out
}

// Len returns the number of hands.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.hands)
}

// Clear drops every hand.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hands = make(map[string]*hand.Hand)
}

func (l *Ledger) idsLocked() []string {
	ids := make([]string, 0, len(l.hands))
	for id := range l.hands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
