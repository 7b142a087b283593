package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/okian/bullrun/internal/adapters/repository"
	service "github.com/okian/bullrun/internal/app"
	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/pkg/logger"
)

// Engine is the part of the game service a run drives.
type Engine interface {
	SubmitHand(ctx context.Context, playerID string, refs []int) (service.Submission, error)
	OpenPack(ctx context.Context, requestID string, req pack.Request) (pack.Pack, bool, error)
	Rank(ctx context.Context, playerID string) (repository.Entry, error)
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// submitPlayers fans players out over cfg.Workers workers. Each worker
// submits the player's hand and then opens its packs.
func submitPlayers(ctx context.Context, cfg *Config, engine Engine, players []Player, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting players", logger.Int("players", len(players)), logger.Int("workers", cfg.Workers))

	var (
		handsOK       int64
		handsRejected int64
		packsOK       int64
		packsDup      int64
		packsFailed   int64
	)

	playerChan := make(chan Player, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range playerChan {
				if ctx.Err() != nil {
					continue
				}
				if submitHand(ctx, engine, p) == outcomeSuccess {
					atomic.AddInt64(&handsOK, 1)
				} else {
					atomic.AddInt64(&handsRejected, 1)
				}
				for _, plan := range p.Packs {
					sends := 1
					if plan.Replay {
						sends = 2
					}
					for s := 0; s < sends; s++ {
						switch openPack(ctx, engine, p.ID, plan) {
						case outcomeSuccess:
							atomic.AddInt64(&packsOK, 1)
						case outcomeDuplicate:
							atomic.AddInt64(&packsDup, 1)
						default:
							atomic.AddInt64(&packsFailed, 1)
						}
					}
				}
				if cfg.Verbose {
					log.Debug(ctx, "player submitted", logger.String("player", p.ID), logger.String("strategy", p.Strategy))
				}
			}
		}()
	}

	go func() {
		defer close(playerChan)
		for _, p := range players {
			select {
			case <-ctx.Done():
				return
			case playerChan <- p:
			}
		}
	}()

	wg.Wait()

	stats.HandsSubmitted = int(atomic.LoadInt64(&handsOK))
	stats.HandsRejected = int(atomic.LoadInt64(&handsRejected))
	stats.PacksOpened = int(atomic.LoadInt64(&packsOK))
	stats.PacksDuplicate = int(atomic.LoadInt64(&packsDup))
	stats.PacksFailed = int(atomic.LoadInt64(&packsFailed))

	log.Info(ctx, "player submission completed",
		logger.Int("hands", stats.HandsSubmitted),
		logger.Int("hands_rejected", stats.HandsRejected),
		logger.Int("packs", stats.PacksOpened),
		logger.Int("packs_duplicate", stats.PacksDuplicate),
		logger.Int("packs_failed", stats.PacksFailed),
	)
	return ctx.Err()
}

func submitHand(ctx context.Context, engine Engine, p Player) outcome {
	if _, err := engine.SubmitHand(ctx, p.ID, p.Refs); err != nil {
		logger.Get().Warn(ctx, "hand rejected", logger.String("player", p.ID), logger.Error(err))
		return outcomeFailed
	}
	return outcomeSuccess
}

func openPack(ctx context.Context, engine Engine, playerID string, plan PackPlan) outcome {
	_, duplicate, err := engine.OpenPack(ctx, plan.RequestID, pack.Request{PlayerID: playerID, Type: plan.Type})
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Get().Warn(ctx, "pack open failed", logger.String("player", playerID), logger.Error(err))
		return outcomeFailed
	case err != nil:
		return outcomeFailed
	case duplicate:
		return outcomeDuplicate
	default:
		return outcomeSuccess
	}
}
