package asset

import (
	"math"

	"github.com/okian/bullrun/internal/config"
)

// ScoreParams tunes the price-movement score.
type ScoreParams struct {
	// 24h moves beyond HighVolatilityPct (absolute, percent) use HighMultiplier.
	HighVolatilityPct float64
	HighMultiplier    float64
	LowMultiplier     float64
	// Tick moves beyond TickVolatilityPct earn |move| * TickVolatilityFactor.
	TickVolatilityPct    float64
	TickVolatilityFactor float64
	// TrendBonus is granted when the tick move agrees in sign with the 24h move.
	TrendBonus float64
}

// ScoreParamsFromConfig extracts score parameters from cfg.
func ScoreParamsFromConfig(cfg *config.Config) ScoreParams {
	return ScoreParams{
		HighVolatilityPct:    cfg.HighVolatilityPct,
		HighMultiplier:       cfg.HighChangeMultiplier,
		LowMultiplier:        cfg.LowChangeMultiplier,
		TickVolatilityPct:    cfg.TickVolatilityPct,
		TickVolatilityFactor: cfg.TickVolatilityFactor,
		TrendBonus:           cfg.TrendBonus,
	}
}

// Score computes the bullrun score for an asset from its tick and 24h moves.
func (p ScoreParams) Score(a Asset) int {
	tick := a.TickChangePct()

	base := tick * 100

	multiplier := p.LowMultiplier
	if math.Abs(a.Change24h) > p.HighVolatilityPct {
		multiplier = p.HighMultiplier
	}
	change24h := a.Change24h * multiplier

	volatility := 0.0
	if math.Abs(tick) > p.TickVolatilityPct {
		volatility = math.Abs(tick) * p.TickVolatilityFactor
	}

	trend := 0.0
	if sameSign(tick, a.Change24h) {
		trend = p.TrendBonus
	}

	return int(math.Round(base + change24h + volatility + trend))
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// RarityTable buckets market caps into tiers.
type RarityTable struct {
	// minCap[r-1] is the lowest market cap that earns tier r.
	minCap [MaxRarity]float64
}

// NewRarityTable builds a table from tier-name thresholds.
func NewRarityTable(thresholds map[string]float64) RarityTable {
	var t RarityTable
	for _, r := range Rarities() {
		t.minCap[r-1] = thresholds[r.String()]
	}
	return t
}

// ForMarketCap returns the highest tier whose threshold cap reaches.
func (t RarityTable) ForMarketCap(marketCap float64) Rarity {
	for r := MaxRarity; r > MinRarity; r-- {
		if marketCap >= t.minCap[r-1] {
			return r
		}
	}
	return MinRarity
}

// Effective returns the live market-cap tier when a market cap is known,
// and the static catalog tier otherwise.
func (t RarityTable) Effective(a Asset, static Rarity) Rarity {
	if a.MarketCap > 0 {
		return t.ForMarketCap(a.MarketCap)
	}
	return static
}
