package simulation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/pkg/logger"
)

// retrieveRankings asks the engine for every player's rank concurrently.
// Players without a hand are skipped.
func retrieveRankings(ctx context.Context, cfg *Config, engine Engine, players []Player, stats *Stats) (map[string]repository.Entry, error) {
	log := logger.Get()
	log.Info(ctx, "retrieving rankings", logger.Int("players", len(players)), logger.Int("workers", cfg.Workers))

	var (
		mu        sync.Mutex
		rankings  = make(map[string]repository.Entry, len(players))
		retrieved int64
		missing   int64
	)

	idChan := make(chan string, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				entry, err := engine.Rank(ctx, id)
				if err != nil {
					atomic.AddInt64(&missing, 1)
					continue
				}
				mu.Lock()
				rankings[id] = entry
				mu.Unlock()
				atomic.AddInt64(&retrieved, 1)
			}
		}()
	}

	go func() {
		defer close(idChan)
		for _, p := range players {
			select {
			case <-ctx.Done():
				return
			case idChan <- p.ID:
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during rank retrieval: %w", err)
	}

	stats.RanksVerified = int(atomic.LoadInt64(&retrieved))
	log.Info(ctx, "rank retrieval completed",
		logger.Int64("retrieved", atomic.LoadInt64(&retrieved)),
		logger.Int64("unranked", atomic.LoadInt64(&missing)),
	)
	return rankings, nil
}
