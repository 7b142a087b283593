// Package hand defines a player's five-card hand and the scorer that values
// it against live asset data.
package hand

import (
	"time"

	"github.com/okian/bullrun/internal/domain/asset"
)

// Card is the per-asset snapshot held by a hand.
type Card struct {
	AssetIndex int          `json:"asset_index"`
	Symbol     string       `json:"symbol"`
	Rarity     asset.Rarity `json:"rarity"`
	Score      int          `json:"score"`
	// Value is Score plus the rarity bonus.
	Value int `json:"value"`
}

// Hand is one player's submission for a round. Only the score fields change
// after submission.
type Hand struct {
	ID        string `json:"id"`
	PlayerID  string `json:"player_id"`
	RoundID   string `json:"round_id"`
	AssetRefs []int  `json:"asset_refs"`
	// SubmittedCards is the card snapshot taken at submission. Never rescored.
	SubmittedCards []Card `json:"submitted_cards"`
	// Cards holds the live values from the latest scoring pass.
	Cards            []Card    `json:"cards"`
	BaseScore        int       `json:"base_score"`
	DuplicatePenalty int       `json:"duplicate_penalty"`
	FinalScore       int       `json:"final_score"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Clone returns a deep copy safe to hand to readers outside the engine lock.
func (h *Hand) Clone() *Hand {
	if h == nil {
		return nil
	}
	c := *h
	c.AssetRefs = append([]int(nil), h.AssetRefs...)
	c.SubmittedCards = append([]Card(nil), h.SubmittedCards...)
	c.Cards = append([]Card(nil), h.Cards...)
	return &c
}

// DuplicatePenalty returns the penalty (<= 0) for repeated references. Each
// group of c identical references costs base*(c-1)^2, clamped to maxPenalty;
// the summed penalty is clamped to maxPenalty again.
func DuplicatePenalty(refs []int, base, maxPenalty int) int {
	counts := make(map[int]int, len(refs))
	for _, r := range refs {
		counts[r]++
	}

	total := 0
	for _, c := range counts {
		if c <= 1 {
			continue
		}
		group := -(base * (c - 1) * (c - 1))
		if group < -maxPenalty {
			group = -maxPenalty
		}
		total += group
	}
	// NOTE: the total uses the same bound as each group.
	if total < -maxPenalty {
		total = -maxPenalty
	}
	return total
}
