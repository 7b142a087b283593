package hand

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/asset"
)

// Default scorer configuration constants.
const (
	defaultHandSize         = 5
	defaultPenaltyBase      = 50
	defaultPenaltyCap       = 300
	defaultRarityMultiplier = 10
)

// AssetReader serves the current asset view. It must not block.
type AssetReader interface {
	Get(symbol string) asset.Asset
}

// Scorer builds and revalues hands.
type Scorer struct {
	catalog          *asset.Catalog
	assets           AssetReader
	handSize         int
	penaltyBase      int
	penaltyCap       int
	rarityMultiplier int
	now              func() time.Time
	newID            func() string
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithHandSize sets the required number of references.
func WithHandSize(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.handSize = n
		}
	}
}

// WithPenalty sets the duplicate-penalty base and cap.
func WithPenalty(base, maxPenalty int) Option {
	return func(s *Scorer) {
		if base >= 0 {
			s.penaltyBase = base
		}
		if maxPenalty >= 0 {
			s.penaltyCap = maxPenalty
		}
	}
}

// WithRarityMultiplier sets the per-level rarity bonus.
func WithRarityMultiplier(m int) Option {
	return func(s *Scorer) {
		if m >= 0 {
			s.rarityMultiplier = m
		}
	}
}

// WithClock sets the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides hand id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Scorer) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithConfig applies hand size, penalty and rarity bonus from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Scorer) {
		WithHandSize(cfg.HandSize)(s)
		WithPenalty(cfg.DuplicatePenaltyBase, cfg.DuplicatePenaltyCap)(s)
		WithRarityMultiplier(cfg.RarityBonusMultiplier)(s)
	}
}

// NewScorer creates a Scorer over catalog and assets.
func NewScorer(catalog *asset.Catalog, assets AssetReader, opts ...Option) *Scorer {
	s := &Scorer{
		catalog:          catalog,
		assets:           assets,
		handSize:         defaultHandSize,
		penaltyBase:      defaultPenaltyBase,
		penaltyCap:       defaultPenaltyCap,
		rarityMultiplier: defaultRarityMultiplier,
		now:              time.Now,
		newID:            func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandSize returns the required number of references.
func (s *Scorer) HandSize() int { return s.handSize }

// Validate checks refs against the hand size and catalog bounds.
func (s *Scorer) Validate(refs []int) error {
	if len(refs) != s.handSize {
		return fmt.Errorf("%w: expected %d assets, got %d", ErrInvalidHand, s.handSize, len(refs))
	}
	for i, r := range refs {
		if _, ok := s.catalog.At(r); !ok {
			return fmt.Errorf("%w: asset %d at position %d out of range [0,%d)", ErrInvalidHand, r, i, s.catalog.Len())
		}
	}
	return nil
}

// Build validates refs and scores a new hand. The duplicate penalty is
// fixed here and never recomputed.
func (s *Scorer) Build(playerID, roundID string, refs []int) (*Hand, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidHand)
	}
	if err := s.Validate(refs); err != nil {
		return nil, err
	}

	h := &Hand{
		ID:               s.newID(),
		PlayerID:         playerID,
		RoundID:          roundID,
		AssetRefs:        append([]int(nil), refs...),
		DuplicatePenalty: DuplicatePenalty(refs, s.penaltyBase, s.penaltyCap),
		SubmittedAt:      s.now().UTC(),
	}
	s.Recompute(h)
	h.SubmittedCards = append([]Card(nil), h.Cards...)
	return h, nil
}

// Recompute refreshes the live cards, base score and final score from
// current asset data. SubmittedCards is left alone. It is idempotent for
// identical asset data.
func (s *Scorer) Recompute(h *Hand) {
	if len(h.Cards) != len(h.AssetRefs) {
		h.Cards = make([]Card, len(h.AssetRefs))
	}
	base := 0
	for i, ref := range h.AssetRefs {
		entry, _ := s.catalog.At(ref)
		a := s.assets.Get(entry.Symbol)
		rarity := a.Rarity
		if !rarity.Valid() {
			rarity = entry.Tier
		}
		value := a.Score + int(rarity)*s.rarityMultiplier
		h.Cards[i] = Card{
			AssetIndex: ref,
			Symbol:     entry.Symbol,
			Rarity:     rarity,
			Score:      a.Score,
			Value:      value,
		}
		base += value
	}
	h.BaseScore = base
	h.FinalScore = base + h.DuplicatePenalty
}
