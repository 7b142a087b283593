package service

import (
	"context"

	"github.com/okian/bullrun/internal/adapters/pricefeed"
	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/domain/asset"
	"github.com/okian/bullrun/internal/domain/hand"
	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/internal/domain/round"
	"github.com/okian/bullrun/pkg/metrics"
)

// Stats is a point-in-time view of the engine for monitoring.
type Stats struct {
	Round           round.Round      `json:"round"`
	Participants    int              `json:"participants"`
	RankedPlayers   int              `json:"ranked_players"`
	Prices          pricefeed.Status `json:"prices"`
	ArchivedRounds  int              `json:"archived_rounds"`
	SettlementQueue int              `json:"settlement_queue"`
	PackRequests    int64            `json:"pack_requests"`
	Subscribers     int              `json:"subscribers"`
}

// TopN returns the top n leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.ranker.TopN(ctx, n)
}

// Rank returns a player's current leaderboard entry.
func (s *Service) Rank(ctx context.Context, playerID string) (repository.Entry, error) {
	return s.ranker.Rank(ctx, playerID)
}

// Hand returns a copy of the player's hand in the current round.
func (s *Service) Hand(playerID string) (*hand.Hand, error) {
	return s.ledger.Get(playerID)
}

// Round returns the current round.
func (s *Service) Round() round.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Current()
}

// History returns finished rounds, newest first.
func (s *Service) History() []repository.Record {
	return s.history.List()
}

// FinishedRound returns one archived round.
func (s *Service) FinishedRound(roundID string) (repository.Record, error) {
	return s.history.Get(roundID)
}

// Catalog returns the asset catalog.
func (s *Service) Catalog() *asset.Catalog {
	return s.catalog
}

// Assets returns every catalog asset with its latest price data.
func (s *Service) Assets() []asset.Asset {
	return s.cache.All()
}

// Asset returns the latest data for a catalog symbol.
func (s *Service) Asset(symbol string) (asset.Asset, bool) {
	if _, ok := s.catalog.Lookup(symbol); !ok {
		return asset.Asset{}, false
	}
	return s.cache.Get(symbol), true
}

// Collection returns a player's pack statistics.
func (s *Service) Collection(playerID string) (pack.Stats, bool) {
	return s.packs.Collection(playerID)
}

// Odds returns the tier probabilities the player's next pack is drawn with.
func (s *Service) Odds(playerID string) pack.Table {
	return s.packs.Odds(playerID)
}

// Stats returns engine statistics and refreshes the matching gauges.
func (s *Service) Stats(ctx context.Context) Stats {
	st := Stats{
		Round:           s.Round(),
		Participants:    s.ledger.Len(),
		RankedPlayers:   s.ranker.Count(ctx),
		Prices:          s.cache.Status(),
		ArchivedRounds:  s.history.Len(),
		SettlementQueue: s.settlements.Len(),
		PackRequests:    s.packReqs.Size(),
		Subscribers:     s.bus.Len(),
	}
	metrics.UpdateParticipants(st.Participants)
	metrics.UpdateSettlementQueueSize(st.SettlementQueue)
	return st
}
