// Package pricefeed polls an external price source and serves the latest
// normalized, scored asset view without ever blocking readers.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/asset"
	"github.com/okian/bullrun/internal/domain/event"
	"github.com/okian/bullrun/pkg/logger"
	"github.com/okian/bullrun/pkg/metrics"
)

// Default cache configuration constants.
const (
	defaultPollInterval = 30 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultTTL          = 2 * time.Minute
	defaultMaxFailures  = 3
)

// Bus is the part of the event bus the cache needs.
type Bus interface {
	event.Publisher
	event.Subscriber
}

// Status reports the cache's health.
type Status struct {
	Fallback            bool      `json:"fallback"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	Assets              int       `json:"assets"`
}

// Cache is the asset cache. Get and All never block on I/O.
type Cache struct {
	mu       sync.RWMutex
	assets   map[string]asset.Asset
	failures int
	fallback bool
	lastOK   time.Time
	lastErr  error

	// fetchMu serializes polls so previous prices stay consistent.
	fetchMu sync.Mutex

	catalog *asset.Catalog
	source  Source
	bus     Bus
	score   asset.ScoreParams
	rarity  asset.RarityTable

	interval    time.Duration
	timeout     time.Duration
	ttl         time.Duration
	maxFailures int
	now         func() time.Time
	logger      logger.Logger

	lifeMu  sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithPollInterval sets the periodic fetch interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithFetchTimeout bounds each fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTTL sets the age after which assets are reported stale.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithMaxFailures sets the consecutive failures that enter fallback mode.
func WithMaxFailures(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxFailures = n
		}
	}
}

// WithScoreParams sets the per-asset score parameters.
func WithScoreParams(p asset.ScoreParams) Option {
	return func(c *Cache) { c.score = p }
}

// WithRarityTable sets the market-cap rarity buckets.
func WithRarityTable(t asset.RarityTable) Option {
	return func(c *Cache) { c.rarity = t }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConfig applies feed, score and rarity settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(c *Cache) {
		WithPollInterval(cfg.PricePollInterval)(c)
		WithFetchTimeout(cfg.PriceFetchTimeout)(c)
		WithTTL(cfg.PriceCacheTTL)(c)
		WithMaxFailures(cfg.MaxConsecutiveFailures)(c)
		WithScoreParams(asset.ScoreParamsFromConfig(cfg))(c)
		WithRarityTable(asset.NewRarityTable(cfg.RarityThresholds))(c)
	}
}

// NewCache creates a Cache. Nothing is fetched until Initialize or Refresh.
func NewCache(catalog *asset.Catalog, source Source, bus Bus, opts ...Option) *Cache {
	cfg := config.New()
	c := &Cache{
		assets:      make(map[string]asset.Asset, catalog.Len()),
		catalog:     catalog,
		source:      source,
		bus:         bus,
		score:       asset.ScoreParamsFromConfig(cfg),
		rarity:      asset.NewRarityTable(cfg.RarityThresholds),
		interval:    defaultPollInterval,
		timeout:     defaultFetchTimeout,
		ttl:         defaultTTL,
		maxFailures: defaultMaxFailures,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("pricefeed")
	}
	return c
}

// Initialize performs one synchronous fetch and starts the poll timer. A
// failed first fetch is returned but the timer still starts; Get serves
// defaults until a poll succeeds.
func (c *Cache) Initialize(ctx context.Context) error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.lifeMu.Unlock()
		return nil
	}
	c.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lifeMu.Unlock()

	err := c.Refresh(ctx)
	go c.poll(runCtx)
	return err
}

func (c *Cache) poll(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Debug(ctx, "scheduled refresh failed", logger.Error(err))
			}
		}
	}
}

// Close stops the poll timer. It is safe to call more than once.
func (c *Cache) Close() {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return
	}
	c.closed = true
	cancel, done := c.cancel, c.done
	c.lifeMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Subscribe registers h for price update and fallback events.
func (c *Cache) Subscribe(h event.Handler) func() {
	return c.bus.Subscribe(h, event.KindPricesUpdated, event.KindPriceFallback)
}

// Get returns the latest known asset for symbol. Unknown or never-fetched
// symbols get a stale default built from the catalog.
func (c *Cache) Get(symbol string) asset.Asset {
	c.mu.RLock()
	a, ok := c.assets[symbol]
	fallback := c.fallback
	c.mu.RUnlock()

	if !ok {
		return c.placeholder(symbol)
	}
	if fallback || c.now().Sub(a.UpdatedAt) > c.ttl {
		a.IsStale = true
	}
	return a
}

// All returns every catalog asset in catalog order.
func (c *Cache) All() []asset.Asset {
	out := make([]asset.Asset, 0, c.catalog.Len())
	for _, sym := range c.catalog.Symbols() {
		out = append(out, c.Get(sym))
	}
	return out
}

// Status reports fallback state and failure counters.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Status{
		Fallback:            c.fallback,
		ConsecutiveFailures: c.failures,
		LastSuccess:         c.lastOK,
		Assets:              len(c.assets),
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

func (c *Cache) placeholder(symbol string) asset.Asset {
	a := asset.Asset{Symbol: symbol, Name: symbol, IsStale: true}
	if e, ok := c.catalog.Lookup(symbol); ok {
		a.Name = e.Name
		a.Rarity = e.Tier
	}
	return a
}

// Refresh forces a fetch. A failure counts toward fallback mode and is
// returned wrapped in ErrPriceFetch.
func (c *Cache) Refresh(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	start := c.now()
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	quotes, err := c.source.Fetch(fctx, c.catalog.Symbols())
	cancel()
	took := float64(c.now().Sub(start).Milliseconds())

	if err == nil && len(quotes) == 0 {
		err = errors.New("source returned no quotes")
	}
	if err != nil {
		metrics.RecordPriceFetch("failure", took)
		c.fail(ctx, err)
		return fmt.Errorf("%w: %w", ErrPriceFetch, err)
	}
	metrics.RecordPriceFetch("success", took)

	updated := c.apply(ctx, quotes, c.now())
	c.bus.Publish(ctx, event.PricesUpdated{At: c.now().UTC(), Symbols: updated})
	return nil
}

func (c *Cache) apply(ctx context.Context, quotes map[string]asset.Quote, at time.Time) int {
	c.mu.Lock()
	updated := 0
	for sym, q := range quotes {
		entry, ok := c.catalog.Lookup(sym)
		if !ok || q.Price <= 0 {
			continue
		}
		a := asset.Asset{
			Symbol:    sym,
			Name:      entry.Name,
			Price:     q.Price,
			Change24h: q.Change24h,
			MarketCap: q.MarketCap,
			Volume24h: q.Volume24h,
			UpdatedAt: at,
		}
		if prev, ok := c.assets[sym]; ok {
			a.PreviousPrice = prev.Price
		}
		a.Rarity = c.rarity.Effective(a, entry.Tier)
		a.Score = c.score.Score(a)
		c.assets[sym] = a
		updated++
	}
	recovered := c.fallback
	c.failures = 0
	c.fallback = false
	c.lastOK = at
	c.lastErr = nil
	c.mu.Unlock()

	if recovered {
		metrics.UpdatePriceFallback(false)
		c.logger.Info(ctx, "price feed recovered, leaving fallback mode")
	}
	return updated
}

func (c *Cache) fail(ctx context.Context, err error) {
	c.mu.Lock()
	c.failures++
	c.lastErr = err
	failures := c.failures
	entered := !c.fallback && failures >= c.maxFailures
	if entered {
		c.fallback = true
	}
	c.mu.Unlock()

	c.logger.Warn(ctx, "price fetch failed",
		logger.Int("consecutive_failures", failures),
		logger.Error(err),
	)
	if entered {
		metrics.UpdatePriceFallback(true)
		c.logger.Error(ctx, "price feed entering fallback mode", logger.Int("consecutive_failures", failures))
		c.bus.Publish(ctx, event.PriceFallback{Failures: failures, LastErr: err.Error()})
	}
}
