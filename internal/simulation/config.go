package simulation

import (
	"time"

	"github.com/okian/bullrun/internal/config"
)

// Config holds configuration for a simulated round.
type Config struct {
	Engine         *config.Config // Engine settings; defaults when nil
	Players        int            // Number of simulated players
	PacksPerPlayer int            // Packs each player opens before the round
	ReplayRatio    float64        // Share of pack requests sent twice
	Steps          int            // Price ticks across the round
	RoundDuration  time.Duration  // Length of the simulated round
	Seed           int64          // Seed for prices, hands and packs
	Workers        int            // Concurrent player workers
	TopN           int            // Leaderboard rows to print
	SettlementDB   string         // Optional SQLite file for settlements
	OutputFile     string         // Optional JSON dump of the finished round
	Verbose        bool           // Log every player and price tick
}

// Stats holds run counters.
type Stats struct {
	HandsSubmitted  int           `json:"hands_submitted"`
	HandsRejected   int           `json:"hands_rejected"`
	PacksOpened     int           `json:"packs_opened"`
	PacksDuplicate  int           `json:"packs_duplicate"`
	PacksFailed     int           `json:"packs_failed"`
	PriceTicks      int           `json:"price_ticks"`
	PriceFailures   int           `json:"price_failures"`
	RanksVerified   int           `json:"ranks_verified"`
	BatchesSettled  int           `json:"batches_settled"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Duration        time.Duration `json:"duration"`
	VirtualDuration time.Duration `json:"virtual_duration"`
}
