package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "BULLRUN_"
	envConfig = "BULLRUN_CONFIG"

	probabilityTolerance = 0.01
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BULLRUN_CONFIG is set
//  3. env (prefix BULLRUN_)
//
// The result is validated before it is returned.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BULLRUN_ROUND_DURATION -> round_duration (flat keys, underscores kept)
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Maps from the file replace the defaults wholesale instead of merging.
	if k.Exists("rarity_thresholds") {
		cfg.RarityThresholds = nil
	}
	if k.Exists("rarity_probabilities") {
		cfg.RarityProbabilities = nil
	}
	if k.Exists("catalog") {
		cfg.Catalog = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		return invalid("addr must not be empty")
	}

	durations := map[string]int64{
		"round_duration":        int64(c.RoundDuration),
		"clock_check_interval":  int64(c.ClockCheckInterval),
		"price_poll_interval":   int64(c.PricePollInterval),
		"price_fetch_timeout":   int64(c.PriceFetchTimeout),
		"price_cache_ttl":       int64(c.PriceCacheTTL),
		"settlement_retry_base": int64(c.SettlementRetryBase),
		"settlement_retry_max":  int64(c.SettlementRetryMax),
	}
	for name, d := range durations {
		if d <= 0 {
			return invalid("%s must be positive", name)
		}
	}
	if (24*time.Hour)%c.RoundDuration != 0 {
		return invalid("round_duration %s must divide 24h", c.RoundDuration)
	}
	if c.RoundStartHourUTC < 0 || c.RoundStartHourUTC > 23 {
		return invalid("round_start_hour_utc must be within 0..23, got %d", c.RoundStartHourUTC)
	}

	positives := map[string]int{
		"hand_size":                c.HandSize,
		"duplicate_penalty_cap":    c.DuplicatePenaltyCap,
		"max_consecutive_failures": c.MaxConsecutiveFailures,
		"top_k":                    c.TopK,
		"regular_pack_size":        c.RegularPackSize,
		"starter_pack_size":        c.StarterPackSize,
		"drought_window":           c.DroughtWindow,
		"history_size":             c.HistorySize,
		"max_leaderboard_limit":    c.MaxLeaderboardLimit,
		"settlement_queue_size":    c.SettlementQueueSize,
		"settlement_workers":       c.SettlementWorkers,
	}
	for name, v := range positives {
		if v <= 0 {
			return invalid("%s must be positive", name)
		}
	}
	if c.SettlementMaxRetries < 0 {
		return invalid("settlement_max_retries must not be negative")
	}
	if c.DuplicatePenaltyBase < 0 {
		return invalid("duplicate_penalty_base must not be negative")
	}

	if c.TopShare <= 0 || c.TopShare > 1 {
		return invalid("top_share must be within (0, 1]")
	}
	if c.WinnerShare <= 0 || c.WinnerShare > 1 {
		return invalid("winner_share must be within (0, 1]")
	}
	if c.WinnerBonusMultiplier < 1 || math.IsNaN(c.WinnerBonusMultiplier) {
		return invalid("winner_bonus_multiplier must be at least 1")
	}
	if c.PowerLawExponent <= 0 || math.IsNaN(c.PowerLawExponent) || math.IsInf(c.PowerLawExponent, 0) {
		return invalid("power_law_exponent must be positive")
	}
	if c.MinimumPool < 0 || c.PerParticipantBase < 0 {
		return invalid("prize pool parameters must not be negative")
	}
	if c.RewardPrecision < 0 {
		return invalid("reward_precision must not be negative")
	}
	if c.UpgradeChance < 0 || c.UpgradeChance > 1 {
		return invalid("upgrade_chance must be within [0, 1]")
	}
	if c.DroughtBoostCap < 1 {
		return invalid("drought_boost_cap must be at least 1")
	}

	if err := c.validateRarity(); err != nil {
		return err
	}

	if len(c.Catalog) == 0 {
		return invalid("catalog must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Catalog))
	for i, entry := range c.Catalog {
		if entry.Symbol == "" {
			return invalid("catalog[%d] has no symbol", i)
		}
		if _, dup := seen[entry.Symbol]; dup {
			return invalid("catalog symbol %s listed twice", entry.Symbol)
		}
		seen[entry.Symbol] = struct{}{}
		if TierLevel(entry.Tier) == 0 {
			return invalid("catalog[%d] has unknown tier %q", i, entry.Tier)
		}
	}
	return nil
}

func (c *Config) validateRarity() error {
	sum := 0.0
	for _, tier := range TierNames {
		p, ok := c.RarityProbabilities[tier]
		if !ok {
			return fmt.Errorf("%w: rarity_probabilities missing tier %s", ErrInvalidConfig, tier)
		}
		if p < 0 {
			return fmt.Errorf("%w: rarity_probabilities[%s] is negative", ErrInvalidConfig, tier)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("%w: rarity_probabilities sum to %.4f, want 1.0", ErrInvalidConfig, sum)
	}

	prev := -1.0
	for _, tier := range TierNames {
		v, ok := c.RarityThresholds[tier]
		if !ok {
			return fmt.Errorf("%w: rarity_thresholds missing tier %s", ErrInvalidConfig, tier)
		}
		if v < prev {
			return fmt.Errorf("%w: rarity_thresholds must increase with tier", ErrInvalidConfig)
		}
		prev = v
	}
	return nil
}

// TierLevel maps a tier name to its 1-based level, 0 when unknown.
func TierLevel(name string) int {
	for i, tier := range TierNames {
		if strings.EqualFold(tier, name) {
			return i + 1
		}
	}
	return 0
}
