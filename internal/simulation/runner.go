// Package simulation plays a full round against the game engine on a
// virtual clock and reports the outcome.
package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/bullrun/internal/adapters/pricefeed"
	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/adapters/settlement"
	service "github.com/okian/bullrun/internal/app"
	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// epoch is where every virtual run starts: a round boundary.
var epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// Report is the outcome of one simulated round.
type Report struct {
	Config      Config             `json:"-"`
	Round       repository.Record  `json:"round"`
	Leaderboard []repository.Entry `json:"leaderboard"`
	Players     []Player           `json:"players"`
	Collections []pack.Stats       `json:"collections"`
	Settlements []settlement.Batch `json:"settlements"`
	Engine      service.Stats      `json:"engine"`
	Stats       Stats              `json:"stats"`
	// Problems lists verification failures. An empty list is a clean run.
	Problems []string `json:"problems,omitempty"`
}

// Run plays one round and writes the report tables to out.
func Run(ctx context.Context, cfg *Config, out io.Writer) (*Report, error) {
	applyDefaults(cfg)
	stats := Stats{StartTime: time.Now()}
	log := logger.Get()

	engineCfg := engineConfig(cfg)
	if err := engineCfg.Validate(); err != nil {
		return nil, err
	}

	log.Info(ctx, "starting bullrun simulation",
		logger.Int("players", cfg.Players),
		logger.Int("packs_per_player", cfg.PacksPerPlayer),
		logger.Int("steps", cfg.Steps),
		logger.Duration("round_duration", cfg.RoundDuration),
		logger.Int64("seed", cfg.Seed),
		logger.Int("workers", cfg.Workers),
	)

	sink, closeSink, err := newSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSink()

	clock := NewClock(epoch)
	svc, err := service.New(engineCfg, pricefeed.NewRandomWalkSource(cfg.Seed, symbols(engineCfg)),
		service.WithClock(clock.Now),
		service.WithSink(sink),
		service.WithLogger(log.Named("engine")),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	stopped := false
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		return svc.Stop(context.WithoutCancel(ctx))
	}
	defer func() { _ = stop() }()

	roundID := svc.Round().ID

	// Step 1: players and their submissions
	players, err := generatePlayers(ctx, cfg, len(engineCfg.Catalog), engineCfg.HandSize)
	if err != nil {
		return nil, fmt.Errorf("player generation failed: %w", err)
	}
	if err := submitPlayers(ctx, cfg, svc, players, &stats); err != nil {
		return nil, fmt.Errorf("player submission failed: %w", err)
	}

	// Step 2: walk prices across the round
	step := cfg.RoundDuration / time.Duration(cfg.Steps)
	for i := 1; i < cfg.Steps; i++ {
		at := clock.Advance(step)
		stats.PriceTicks++
		if err := svc.RefreshPrices(ctx); err != nil {
			stats.PriceFailures++
			log.Warn(ctx, "price tick failed", logger.Int("step", i), logger.Error(err))
			continue
		}
		if cfg.Verbose {
			log.Debug(ctx, "price tick", logger.Int("step", i), logger.Time("at", at))
		}
	}

	// Step 3: verify the live leaderboard before the round closes
	var problems []error
	leaderboard, err := svc.TopN(ctx, max(1, cfg.Players))
	if err != nil {
		return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	rankings, err := retrieveRankings(ctx, cfg, svc, players, &stats)
	if err != nil {
		return nil, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	problems = append(problems, verifyLeaderboard(leaderboard), verifyRankings(rankings, leaderboard))

	// Step 4: close the round
	clock.Advance(cfg.RoundDuration - step*time.Duration(cfg.Steps-1) + time.Second)
	svc.Tick(ctx)
	rec, err := svc.FinishedRound(roundID)
	if err != nil {
		return nil, fmt.Errorf("round %s did not finish: %w", roundID, err)
	}
	problems = append(problems, verifyRound(rec))

	collections := make([]pack.Stats, 0, len(players))
	for _, p := range players {
		if c, ok := svc.Collection(p.ID); ok {
			collections = append(collections, c)
		}
	}
	engineStats := svc.Stats(ctx)

	// Step 5: drain settlements
	if err := stop(); err != nil {
		problems = append(problems, fmt.Errorf("engine stop: %w", err))
	}
	batches := sink.delivered()
	stats.BatchesSettled = len(batches)
	if len(rec.Distribution.Allocations) > 0 && len(batches) == 0 {
		problems = append(problems, errors.New("finished round was never settled"))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	stats.VirtualDuration = clock.Now().Sub(epoch)

	report := &Report{
		Config:      *cfg,
		Round:       rec,
		Leaderboard: leaderboard,
		Players:     players,
		Collections: collections,
		Settlements: batches,
		Engine:      engineStats,
		Stats:       stats,
	}
	for _, p := range problems {
		if p != nil {
			report.Problems = append(report.Problems, p.Error())
		}
	}

	if out != nil {
		report.Render(out)
	}
	if cfg.OutputFile != "" {
		if err := saveReport(ctx, cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	log.Info(ctx, "simulation completed",
		logger.String("round", rec.Round.ID),
		logger.Int("problems", len(report.Problems)),
		logger.Duration("duration", stats.Duration),
	)
	return report, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Players <= 0 {
		cfg.Players = DefaultPlayers
	}
	if cfg.PacksPerPlayer < 0 {
		cfg.PacksPerPlayer = DefaultPacksPerPlayer
	}
	if cfg.ReplayRatio < 0 || cfg.ReplayRatio > 1 {
		cfg.ReplayRatio = DefaultReplayRatio
	}
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = DefaultRoundDuration
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
}

// engineConfig copies the engine settings and pins everything a virtual run
// controls itself: the round window, the timers and the pack seed.
func engineConfig(cfg *Config) *config.Config {
	base := cfg.Engine
	if base == nil {
		base = config.New()
	}
	ec := *base
	ec.RoundDuration = cfg.RoundDuration
	ec.RoundStartHourUTC = 0
	ec.ClockCheckInterval = idleInterval
	ec.PricePollInterval = idleInterval
	ec.PriceCacheTTL = cfg.RoundDuration
	ec.PackSeed = cfg.Seed
	if ec.SettlementRetryBase > time.Second {
		ec.SettlementRetryBase = time.Second
	}
	return &ec
}

func symbols(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Catalog))
	for _, e := range cfg.Catalog {
		out = append(out, e.Symbol)
	}
	return out
}

func newSink(ctx context.Context, cfg *Config) (*recordingSink, func(), error) {
	if cfg.SettlementDB == "" {
		return &recordingSink{next: settlement.NewLogSink(logger.Get().Named("settlement"))}, func() {}, nil
	}
	db, err := settlement.OpenSQLite(ctx, cfg.SettlementDB)
	if err != nil {
		return nil, nil, err
	}
	return &recordingSink{next: db}, func() { _ = db.Close() }, nil
}

// saveReport writes the report as indented JSON.
func saveReport(ctx context.Context, filename string, report *Report) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}
