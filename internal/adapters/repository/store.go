// Package repository holds the in-memory round state: the participant
// ledger, leaderboard snapshots and the bounded archive of finished rounds.
package repository

import (
	"context"
	"time"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank             int       `json:"rank"`
	PlayerID         string    `json:"player_id"`
	HandID           string    `json:"hand_id"`
	FinalScore       int       `json:"final_score"`
	BaseScore        int       `json:"base_score"`
	DuplicatePenalty int       `json:"duplicate_penalty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Leaderboard provides read access to the current ranking.
type Leaderboard interface {
	// Rank returns the current entry for a player.
	// Returns ErrNotFound if the player holds no hand.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries in rank order.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked players.
	Count(ctx context.Context) int
}
