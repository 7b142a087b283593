// Package service wires the game components together and owns the single
// serialization point for round state, the participant ledger, the
// leaderboard and pack drought history.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/bullrun/internal/adapters/mq/queue"
	"github.com/okian/bullrun/internal/adapters/mq/worker"
	"github.com/okian/bullrun/internal/adapters/pricefeed"
	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/adapters/settlement"
	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/asset"
	"github.com/okian/bullrun/internal/domain/dedupe"
	"github.com/okian/bullrun/internal/domain/event"
	"github.com/okian/bullrun/internal/domain/hand"
	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/internal/domain/reward"
	"github.com/okian/bullrun/internal/domain/round"
	"github.com/okian/bullrun/pkg/logger"
	"github.com/okian/bullrun/pkg/metrics"
)

// Service implements the game engine behind the HTTP API and the simulator.
type Service struct {
	// mu serializes every mutation of round state, the ledger, the ranker
	// and pack history. Events produced under mu are published after it is
	// released.
	mu sync.Mutex

	cfg         *config.Config
	bus         *event.Bus
	catalog     *asset.Catalog
	cache       *pricefeed.Cache
	scorer      *hand.Scorer
	ledger      *repository.Ledger
	ranker      *repository.Ranker
	history     *repository.History
	distributor Distributor
	packs       *pack.Generator
	packReqs    dedupe.Deduper[pack.Pack]
	clock       *round.Clock

	settlements *queue.InMemoryQueue
	pool        *worker.Pool
	sink        settlement.Sink
	workerOpts  []worker.Option

	now    func() time.Time
	logger logger.Logger

	// Lifecycle.
	lifeMu      sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// Distributor splits a round's prize pool over the ordered leaderboard.
type Distributor interface {
	Distribute(players []string) (reward.Distribution, error)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source shared by every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSink sets where finished-round payouts are delivered.
func WithSink(sink settlement.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithBus shares an existing event bus.
func WithBus(b *event.Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithDistributor replaces the configured reward distributor.
func WithDistributor(d Distributor) Option {
	return func(s *Service) {
		if d != nil {
			s.distributor = d
		}
	}
}

// WithWorkerOptions passes extra options to the settlement workers.
func WithWorkerOptions(opts ...worker.Option) Option {
	return func(s *Service) {
		s.workerOpts = append(s.workerOpts, opts...)
	}
}

// New constructs a Service from cfg, polling prices from source.
func New(cfg *config.Config, source pricefeed.Source, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("engine")
	}
	if s.bus == nil {
		s.bus = event.NewBus(event.WithLogger(s.logger.Named("bus")))
	}
	if s.sink == nil {
		s.sink = settlement.NewLogSink(s.logger.Named("settlement"))
	}

	catalog, err := asset.NewCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	if s.distributor == nil {
		d, err := reward.NewDistributor(reward.ParamsFromConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("build reward distributor: %w", err)
		}
		s.distributor = d
	}
	clock, err := round.NewClock(round.Schedule{
		Duration:     cfg.RoundDuration,
		StartHourUTC: cfg.RoundStartHourUTC,
	}, s.now())
	if err != nil {
		return nil, fmt.Errorf("build round clock: %w", err)
	}

	s.catalog = catalog
	s.clock = clock
	s.cache = pricefeed.NewCache(catalog, source, s.bus,
		pricefeed.WithConfig(cfg),
		pricefeed.WithClock(s.now),
		pricefeed.WithLogger(s.logger.Named("pricefeed")),
	)
	s.scorer = hand.NewScorer(catalog, s.cache,
		hand.WithConfig(cfg),
		hand.WithClock(s.now),
	)
	s.packs = pack.NewGenerator(catalog, s.cache,
		pack.WithConfig(cfg),
		pack.WithClock(s.now),
	)
	s.packReqs = dedupe.New[pack.Pack](dedupe.WithMaxSize(cfg.PackDedupeSize))
	s.ledger = repository.NewLedger()
	s.ranker = repository.NewRanker(repository.WithTopCacheSize(cfg.MaxLeaderboardLimit))
	s.ranker.Reset(clock.Current().ID, s.now())
	s.history = repository.NewHistory(repository.WithCapacity(cfg.HistorySize))
	s.settlements = queue.NewInMemoryQueue(queue.WithCapacity(cfg.SettlementQueueSize))

	wopts := append([]worker.Option{
		worker.WithConfig(cfg),
		worker.WithLogger(s.logger.Named("settlement-worker")),
	}, s.workerOpts...)
	s.pool = worker.NewPool(cfg.SettlementWorkers, s.settlements, s.sink, wopts...)

	s.unsubscribe = s.bus.Subscribe(s.onPricesUpdated, event.KindPricesUpdated)
	metrics.UpdateRoundStatus(clock.Current().Status.Level())
	return s, nil
}

// Start fetches prices once, then starts the price poll, the round clock
// check and the settlement workers. It is idempotent. A failed first price
// fetch is logged; the cache serves defaults until a poll succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting game engine",
		logger.String("round", s.Round().ID),
		logger.Int("catalog", s.catalog.Len()),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.pool.Start(runCtx)

	if err := s.cache.Initialize(ctx); err != nil {
		s.logger.Warn(ctx, "initial price fetch failed", logger.Error(err))
	}
	s.Tick(ctx)

	go s.checkLoop(runCtx)

	s.started = true
	s.logger.Info(ctx, "game engine started",
		logger.Duration("clock_check_interval", s.cfg.ClockCheckInterval),
		logger.Duration("price_poll_interval", s.cfg.PricePollInterval),
	)
	return nil
}

func (s *Service) checkLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.ClockCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop cancels both timers and drains the settlement queue. It is safe to
// call more than once.
func (s *Service) Stop(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.unsubscribe()
	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping game engine")
	s.cancel()
	<-s.done
	s.cache.Close()

	err := s.pool.Shutdown(ctx)
	s.logger.Info(ctx, "game engine stopped")
	return err
}

// Subscribe registers h on the engine's event bus.
func (s *Service) Subscribe(h event.Handler, kinds ...event.Kind) func() {
	return s.bus.Subscribe(h, kinds...)
}

// RefreshPrices forces a price fetch. A successful fetch triggers a scoring
// pass through the bus.
func (s *Service) RefreshPrices(ctx context.Context) error {
	return s.cache.Refresh(ctx)
}

func (s *Service) publish(ctx context.Context, events []event.Event) {
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
}
