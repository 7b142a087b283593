package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/pkg/logger"
)

// Hand-picking strategies.
const (
	strategyDiversified  = iota // five distinct assets
	strategyConcentrated        // one asset doubled or tripled
	strategyRandom              // independent draws, duplicates allowed
	strategyCount
)

// Player is one simulated participant and everything it will send.
type Player struct {
	ID       string     `json:"id"`
	Strategy string     `json:"strategy"`
	Refs     []int      `json:"refs"`
	Packs    []PackPlan `json:"packs"`
}

// PackPlan is one pack request. Replay sends the same request id twice.
type PackPlan struct {
	RequestID string    `json:"request_id"`
	Type      pack.Type `json:"type"`
	Replay    bool      `json:"replay,omitempty"`
}

// generatePlayers builds cfg.Players players concurrently. Each player draws
// from its own seeded source so the result does not depend on scheduling.
func generatePlayers(ctx context.Context, cfg *Config, catalogSize, handSize int) ([]Player, error) {
	logger.Get().Info(ctx, "generating players", logger.Int("players", cfg.Players))

	type playerResult struct {
		index  int
		player Player
		err    error
	}

	players := make([]Player, cfg.Players)
	resultChan := make(chan playerResult, cfg.Players)

	workerCount := max(1, min(cfg.Workers, cfg.Players))
	perWorker := cfg.Players / workerCount

	for w := 0; w < workerCount; w++ {
		start := w * perWorker
		end := start + perWorker
		if w == workerCount-1 {
			end = cfg.Players
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- playerResult{index: i, err: ctx.Err()}
					return
				default:
					rng := rand.New(rand.NewSource(cfg.Seed + int64(i))) //nolint:gosec // simulated players
					resultChan <- playerResult{index: i, player: generatePlayer(rng, i, cfg, catalogSize, handSize)}
				}
			}
		}(start, end)
	}

	for i := 0; i < cfg.Players; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during player generation: %w", ctx.Err())
		case r := <-resultChan:
			if r.err != nil {
				return nil, fmt.Errorf("failed to generate player %d: %w", r.index, r.err)
			}
			players[r.index] = r.player
		}
	}
	return players, nil
}

func generatePlayer(rng *rand.Rand, index int, cfg *Config, catalogSize, handSize int) Player {
	p := Player{ID: fmt.Sprintf("player-%03d", index+1)}

	switch rng.Intn(strategyCount) {
	case strategyDiversified:
		p.Strategy = "diversified"
		p.Refs = rng.Perm(catalogSize)[:min(handSize, catalogSize)]
		for len(p.Refs) < handSize {
			p.Refs = append(p.Refs, rng.Intn(catalogSize))
		}
	case strategyConcentrated:
		p.Strategy = "concentrated"
		favourite := rng.Intn(catalogSize)
		copies := 2 + rng.Intn(2)
		for i := 0; i < handSize; i++ {
			if i < copies {
				p.Refs = append(p.Refs, favourite)
				continue
			}
			p.Refs = append(p.Refs, rng.Intn(catalogSize))
		}
	default:
		p.Strategy = "random"
		for i := 0; i < handSize; i++ {
			p.Refs = append(p.Refs, rng.Intn(catalogSize))
		}
	}

	for i := 0; i < cfg.PacksPerPlayer; i++ {
		plan := PackPlan{
			RequestID: uuid.NewString(),
			Type:      pack.TypeRegular,
			Replay:    rng.Float64() < cfg.ReplayRatio,
		}
		if i == 0 {
			plan.Type = pack.TypeStarter
		}
		p.Packs = append(p.Packs, plan)
	}
	return p
}
