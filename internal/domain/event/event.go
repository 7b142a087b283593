// Package event defines the closed set of engine events and the synchronous
// bus that broadcasts them to subscribers.
package event

import (
	"time"
)

// Kind identifies an event variant.
type Kind string

// Event kinds broadcast by the engine.
const (
	KindRoundStart    Kind = "ROUND_START"
	KindRoundEnd      Kind = "ROUND_END"
	KindRoundState    Kind = "ROUND_STATE"
	KindScoreUpdate   Kind = "SCORE_UPDATE"
	KindHandCreated   Kind = "HAND_CREATED"
	KindPricesUpdated Kind = "PRICES_UPDATED"
	KindPriceFallback Kind = "PRICE_FALLBACK"
	KindError         Kind = "ERROR_OCCURRED"
)

// Event is implemented only by the payload types in this package.
type Event interface {
	Kind() Kind
	sealed()
}

// Standing is a leaderboard row as carried by events.
type Standing struct {
	Rank        int       `json:"rank"`
	PlayerID    string    `json:"player_id"`
	FinalScore  int       `json:"final_score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Payout is a reward allocation as carried by events.
type Payout struct {
	PlayerID string `json:"player_id"`
	Rank     int    `json:"rank"`
	Amount   string `json:"amount"`
	Class    string `json:"class"`
}

// RoundStarted fires on WAITING -> ACTIVE.
type RoundStarted struct {
	RoundID string
	Start   time.Time
	End     time.Time
}

// RoundEnded fires once a round is finalized.
type RoundEnded struct {
	RoundID     string
	Leaderboard []Standing
	Allocations []Payout
	// Failed is set when reward computation failed and Allocations may be partial.
	Failed bool
}

// RoundStateChanged fires on every round status transition.
type RoundStateChanged struct {
	RoundID string
	From    string
	To      string
	At      time.Time
}

// ScoreUpdated fires after every rescoring pass.
type ScoreUpdated struct {
	RoundID string
	// Leaderboard is the full ordering, not the capped top cache.
	Leaderboard []Standing
}

// HandCreated fires after a hand was accepted.
type HandCreated struct {
	RoundID    string
	HandID     string
	PlayerID   string
	FinalScore int
	Rank       int
}

// PricesUpdated fires after every successful price poll.
type PricesUpdated struct {
	At      time.Time
	Symbols int
}

// PriceFallback fires once per entry into fallback mode.
type PriceFallback struct {
	Failures int
	LastErr  string
}

// ErrorOccurred reports a non-fatal engine failure.
type ErrorOccurred struct {
	Component string
	Reason    string
}

func (RoundStarted) Kind() Kind      { return KindRoundStart }
func (RoundEnded) Kind() Kind        { return KindRoundEnd }
func (RoundStateChanged) Kind() Kind { return KindRoundState }
func (ScoreUpdated) Kind() Kind      { return KindScoreUpdate }
func (HandCreated) Kind() Kind       { return KindHandCreated }
func (PricesUpdated) Kind() Kind     { return KindPricesUpdated }
func (PriceFallback) Kind() Kind     { return KindPriceFallback }
func (ErrorOccurred) Kind() Kind     { return KindError }

func (RoundStarted) sealed()      {}
func (RoundEnded) sealed()        {}
func (RoundStateChanged) sealed() {}
func (ScoreUpdated) sealed()      {}
func (HandCreated) sealed()       {}
func (PricesUpdated) sealed()     {}
func (PriceFallback) sealed()     {}
func (ErrorOccurred) sealed()     {}
