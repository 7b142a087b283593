package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/bullrun/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RoundDuration, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.HandSize, convey.ShouldEqual, 5)
			convey.So(cfg.MaxConsecutiveFailures, convey.ShouldEqual, 3)
			convey.So(cfg.TopK, convey.ShouldEqual, 10)
			convey.So(cfg.Catalog, convey.ShouldNotBeEmpty)
		})

		convey.Convey("Then the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When rarity probabilities do not sum to one", func() {
			cfg.RarityProbabilities[config.TierCommon] = 0.9
			err := cfg.Validate()

			convey.Convey("Then validation fails fast", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "rarity_probabilities")
			})
		})

		convey.Convey("When the sum is within tolerance", func() {
			cfg.RarityProbabilities[config.TierCommon] = 0.505
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When a duration is not positive", func() {
			cfg.PricePollInterval = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "price_poll_interval")
		})

		convey.Convey("When the round duration is negative", func() {
			cfg.RoundDuration = -time.Hour
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the round duration does not divide a day", func() {
			cfg.RoundDuration = 7 * time.Hour
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "round_duration")
		})

		convey.Convey("When the round duration divides a day", func() {
			for _, d := range []time.Duration{90 * time.Minute, 6 * time.Hour, 24 * time.Hour} {
				cfg.RoundDuration = d
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			}
		})

		convey.Convey("When the power-law exponent is zero", func() {
			cfg.PowerLawExponent = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "power_law_exponent")
		})

		convey.Convey("When the winner bonus multiplier shrinks the winner", func() {
			cfg.WinnerBonusMultiplier = 0.5
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "winner_bonus_multiplier")
		})

		convey.Convey("When the round start hour is out of range", func() {
			cfg.RoundStartHourUTC = 24
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When addr is empty", func() {
			cfg.Addr = ""
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})

		convey.Convey("When a catalog tier is unknown", func() {
			cfg.Catalog = []config.CatalogEntry{{Symbol: "BTC", Tier: "mythic"}}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a catalog symbol is duplicated", func() {
			cfg.Catalog = []config.CatalogEntry{{Symbol: "BTC", Tier: "rare"}, {Symbol: "BTC", Tier: "rare"}}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When thresholds decrease with tier", func() {
			cfg.RarityThresholds[config.TierLegendary] = 1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.PricePollInterval, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BULLRUN_ADDR", ":8080")
			_ = os.Setenv("BULLRUN_ROUND_DURATION", "1h")
			_ = os.Setenv("BULLRUN_MAX_CONSECUTIVE_FAILURES", "7")
			_ = os.Setenv("BULLRUN_WINNER_BONUS_MULTIPLIER", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RoundDuration, convey.ShouldEqual, time.Hour)
				convey.So(cfg.MaxConsecutiveFailures, convey.ShouldEqual, 7)
				convey.So(cfg.WinnerBonusMultiplier, convey.ShouldEqual, 1.5)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
round_start_hour_utc: 12
price_cache_ttl: 90s
rarity_probabilities:
  common: 0.4
  uncommon: 0.3
  rare: 0.2
  epic: 0.07
  legendary: 0.03
catalog:
  - symbol: BTC
    name: Bitcoin
    tier: legendary
  - symbol: DOGE
    name: Dogecoin
    tier: common
`)
			_ = os.Setenv("BULLRUN_CONFIG", tmpFile)
			_ = os.Setenv("BULLRUN_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RoundStartHourUTC, convey.ShouldEqual, 12)
				convey.So(cfg.PriceCacheTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.RarityProbabilities[config.TierLegendary], convey.ShouldEqual, 0.03)
				convey.So(len(cfg.Catalog), convey.ShouldEqual, 2)
				convey.So(cfg.Catalog[1].Symbol, convey.ShouldEqual, "DOGE")
			})
		})

		convey.Convey("When the file carries an invalid probability table", func() {
			tmpFile := createTempConfigFile(t, `
rarity_probabilities:
  common: 0.9
  uncommon: 0.3
  rare: 0.2
  epic: 0.07
  legendary: 0.03
`)
			_ = os.Setenv("BULLRUN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrInvalidConfig", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("BULLRUN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BULLRUN_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestTierLevel(t *testing.T) {
	convey.Convey("Tier names map to 1-based levels", t, func() {
		convey.So(config.TierLevel("common"), convey.ShouldEqual, 1)
		convey.So(config.TierLevel("Legendary"), convey.ShouldEqual, 5)
		convey.So(config.TierLevel("mythic"), convey.ShouldEqual, 0)
	})
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"BULLRUN_CONFIG",
		"BULLRUN_ADDR",
		"BULLRUN_ROUND_DURATION",
		"BULLRUN_MAX_CONSECUTIVE_FAILURES",
		"BULLRUN_WINNER_BONUS_MULTIPLIER",
	} {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
