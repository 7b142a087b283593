// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() builds a Config with defaults; Load(ctx) layers file and env on top.
//   - A Config is validated once at startup and treated as read-only afterwards.
//   - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"time"
)

// Rarity tier names used as keys in the rarity tables.
const (
	TierCommon    = "common"
	TierUncommon  = "uncommon"
	TierRare      = "rare"
	TierEpic      = "epic"
	TierLegendary = "legendary"
)

// TierNames lists the rarity tiers from lowest (level 1) to highest (level 5).
var TierNames = []string{TierCommon, TierUncommon, TierRare, TierEpic, TierLegendary} //nolint:gochecknoglobals // fixed tier order

// CatalogEntry describes one tradeable asset a card can reference.
type CatalogEntry struct {
	Symbol string `koanf:"symbol"`
	Name   string `koanf:"name"`
	// Tier is the static rarity used when no live market cap is known.
	Tier string `koanf:"tier"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Round timing.
	RoundDuration      time.Duration `koanf:"round_duration"`
	RoundStartHourUTC  int           `koanf:"round_start_hour_utc"`
	ClockCheckInterval time.Duration `koanf:"clock_check_interval"`
	HistorySize        int           `koanf:"history_size"`

	// Hands and scoring.
	HandSize              int     `koanf:"hand_size"`
	DuplicatePenaltyBase  int     `koanf:"duplicate_penalty_base"`
	DuplicatePenaltyCap   int     `koanf:"duplicate_penalty_cap"`
	RarityBonusMultiplier int     `koanf:"rarity_bonus_multiplier"`
	HighVolatilityPct     float64 `koanf:"high_volatility_pct"`
	HighChangeMultiplier  float64 `koanf:"high_change_multiplier"`
	LowChangeMultiplier   float64 `koanf:"low_change_multiplier"`
	TickVolatilityPct     float64 `koanf:"tick_volatility_pct"`
	TickVolatilityFactor  float64 `koanf:"tick_volatility_factor"`
	TrendBonus            float64 `koanf:"trend_bonus"`

	// Price feed.
	PriceSourceURL         string        `koanf:"price_source_url"`
	PriceSourceRPS         float64       `koanf:"price_source_rps"`
	PricePollInterval      time.Duration `koanf:"price_poll_interval"`
	PriceFetchTimeout      time.Duration `koanf:"price_fetch_timeout"`
	PriceCacheTTL          time.Duration `koanf:"price_cache_ttl"`
	MaxConsecutiveFailures int           `koanf:"max_consecutive_failures"`

	// Rarity: minimum market cap (USD) per tier and base draw probabilities.
	RarityThresholds    map[string]float64 `koanf:"rarity_thresholds"`
	RarityProbabilities map[string]float64 `koanf:"rarity_probabilities"`

	// Rewards.
	TopShare              float64 `koanf:"top_share"`
	TopK                  int     `koanf:"top_k"`
	WinnerShare           float64 `koanf:"winner_share"`
	PowerLawExponent      float64 `koanf:"power_law_exponent"`
	WinnerBonusMultiplier float64 `koanf:"winner_bonus_multiplier"`
	MinimumPool           float64 `koanf:"minimum_pool"`
	PerParticipantBase    float64 `koanf:"per_participant_base"`
	RewardPrecision       int32   `koanf:"reward_precision"`

	// Packs.
	RegularPackSize     int     `koanf:"regular_pack_size"`
	StarterPackSize     int     `koanf:"starter_pack_size"`
	UpgradeChance       float64 `koanf:"upgrade_chance"`
	DroughtWindow       int     `koanf:"drought_window"`
	DroughtThreshold    int     `koanf:"drought_threshold"`
	DroughtBoostStep    float64 `koanf:"drought_boost_step"`
	DroughtBoostCap     float64 `koanf:"drought_boost_cap"`
	PackSeed            int64   `koanf:"pack_seed"`
	PackDedupeSize      int     `koanf:"pack_dedupe_size"`
	CollectionPackLimit int     `koanf:"collection_pack_limit"`

	// Settlement. Retries back off from SettlementRetryBase, doubling up to
	// SettlementRetryMax.
	SettlementDBPath     string        `koanf:"settlement_db_path"`
	SettlementQueueSize  int           `koanf:"settlement_queue_size"`
	SettlementMaxRetries int           `koanf:"settlement_max_retries"`
	SettlementWorkers    int           `koanf:"settlement_workers"`
	SettlementRetryBase  time.Duration `koanf:"settlement_retry_base"`
	SettlementRetryMax   time.Duration `koanf:"settlement_retry_max"`

	// Catalog is the fixed asset catalog hands index into.
	Catalog []CatalogEntry `koanf:"catalog"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		MaxLeaderboardLimit: 100,

		RoundDuration:      24 * time.Hour,
		RoundStartHourUTC:  0,
		ClockCheckInterval: time.Second,
		HistorySize:        30,

		HandSize:              5,
		DuplicatePenaltyBase:  50,
		DuplicatePenaltyCap:   300,
		RarityBonusMultiplier: 10,
		HighVolatilityPct:     10,
		HighChangeMultiplier:  2,
		LowChangeMultiplier:   1,
		TickVolatilityPct:     1,
		TickVolatilityFactor:  10,
		TrendBonus:            5,

		PriceSourceRPS:         2,
		PricePollInterval:      30 * time.Second,
		PriceFetchTimeout:      5 * time.Second,
		PriceCacheTTL:          2 * time.Minute,
		MaxConsecutiveFailures: 3,

		RarityThresholds: map[string]float64{
			TierCommon:    0,
			TierUncommon:  1e9,
			TierRare:      10e9,
			TierEpic:      50e9,
			TierLegendary: 200e9,
		},
		RarityProbabilities: map[string]float64{
			TierCommon:    0.50,
			TierUncommon:  0.28,
			TierRare:      0.15,
			TierEpic:      0.05,
			TierLegendary: 0.02,
		},

		TopShare:              0.8,
		TopK:                  10,
		WinnerShare:           0.4,
		PowerLawExponent:      1.5,
		WinnerBonusMultiplier: 2.0,
		MinimumPool:           1000,
		PerParticipantBase:    10,
		RewardPrecision:       2,

		RegularPackSize:     5,
		StarterPackSize:     8,
		UpgradeChance:       0.5,
		DroughtWindow:       20,
		DroughtThreshold:    5,
		DroughtBoostStep:    0.25,
		DroughtBoostCap:     3.0,
		PackSeed:            0,
		PackDedupeSize:      50_000,
		CollectionPackLimit: 50,

		SettlementQueueSize:  64,
		SettlementMaxRetries: 5,
		SettlementWorkers:    1,
		SettlementRetryBase:  time.Second,
		SettlementRetryMax:   time.Minute,

		Catalog: DefaultCatalog(),
	}
}

// DefaultCatalog returns the built-in asset catalog.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Symbol: "BTC", Name: "Bitcoin", Tier: TierLegendary},
		{Symbol: "ETH", Name: "Ethereum", Tier: TierLegendary},
		{Symbol: "SOL", Name: "Solana", Tier: TierEpic},
		{Symbol: "BNB", Name: "BNB", Tier: TierEpic},
		{Symbol: "XRP", Name: "XRP", Tier: TierEpic},
		{Symbol: "ADA", Name: "Cardano", Tier: TierRare},
		{Symbol: "DOGE", Name: "Dogecoin", Tier: TierRare},
		{Symbol: "AVAX", Name: "Avalanche", Tier: TierRare},
		{Symbol: "DOT", Name: "Polkadot", Tier: TierRare},
		{Symbol: "LINK", Name: "Chainlink", Tier: TierRare},
		{Symbol: "MATIC", Name: "Polygon", Tier: TierUncommon},
		{Symbol: "ATOM", Name: "Cosmos", Tier: TierUncommon},
		{Symbol: "UNI", Name: "Uniswap", Tier: TierUncommon},
		{Symbol: "LTC", Name: "Litecoin", Tier: TierUncommon},
		{Symbol: "NEAR", Name: "NEAR Protocol", Tier: TierUncommon},
		{Symbol: "ARB", Name: "Arbitrum", Tier: TierCommon},
		{Symbol: "OP", Name: "Optimism", Tier: TierCommon},
		{Symbol: "APT", Name: "Aptos", Tier: TierCommon},
		{Symbol: "PEPE", Name: "Pepe", Tier: TierCommon},
		{Symbol: "BONK", Name: "Bonk", Tier: TierCommon},
	}
}
