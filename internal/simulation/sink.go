package simulation

import (
	"context"
	"sync"

	"github.com/okian/bullrun/internal/adapters/settlement"
)

// recordingSink forwards batches to next and keeps the delivered ones.
type recordingSink struct {
	next settlement.Sink

	mu      sync.Mutex
	batches []settlement.Batch
}

func (s *recordingSink) Deliver(ctx context.Context, b settlement.Batch) error {
	if err := s.next.Deliver(ctx, b); err != nil {
		return err
	}
	s.mu.Lock()
	s.batches = append(s.batches, b)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) delivered() []settlement.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]settlement.Batch(nil), s.batches...)
}
