package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/bullrun/internal/domain/asset"
)

// Source is a pollable symbol -> quote mapping.
type Source interface {
	Fetch(ctx context.Context, symbols []string) (map[string]asset.Quote, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbols []string) (map[string]asset.Quote, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, symbols []string) (map[string]asset.Quote, error) {
	return f(ctx, symbols)
}

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultBurst       = 1
	maxErrorBody       = 512
)

// HTTPSource polls a JSON endpoint answering
// GET <url>?symbols=A,B with {"A": {"price":..,"change24h":..,"marketCap":..,"volume24h":..}}.
type HTTPSource struct {
	http    *http.Client
	url     string
	limiter *rate.Limiter
}

// NewHTTPSource creates an HTTPSource limited to rps requests per second.
func NewHTTPSource(endpoint string, rps float64) *HTTPSource {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPSource{
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		url:     endpoint,
		limiter: rate.NewLimiter(limit, defaultBurst),
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, symbols []string) (map[string]asset.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	q := u.Query()
	q.Set("symbols", strings.Join(symbols, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("source answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out map[string]asset.Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	return out, nil
}

// RandomWalkSource produces seeded random-walk quotes. It backs the
// simulator and tests when no live endpoint is configured.
type RandomWalkSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	quotes map[string]asset.Quote
	// StepPct bounds each tick's move in percent.
	StepPct float64
}

// NewRandomWalkSource seeds a walk. Initial prices and caps are derived
// from the symbol position so runs are reproducible.
func NewRandomWalkSource(seed int64, symbols []string) *RandomWalkSource {
	s := &RandomWalkSource{
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // simulated prices
		quotes:  make(map[string]asset.Quote, len(symbols)),
		StepPct: 3,
	}
	for i, sym := range symbols {
		capital := 400e9 / math.Pow(1.6, float64(i))
		price := 10 + s.rng.Float64()*1000
		s.quotes[sym] = asset.Quote{
			Price:     price,
			Change24h: (s.rng.Float64() - 0.5) * 20,
			MarketCap: capital,
			Volume24h: capital * 0.05,
		}
	}
	return s
}

// Fetch implements Source.
func (s *RandomWalkSource) Fetch(ctx context.Context, symbols []string) (map[string]asset.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]asset.Quote, len(symbols))
	for _, sym := range symbols {
		q, ok := s.quotes[sym]
		if !ok {
			continue
		}
		move := (s.rng.Float64()*2 - 1) * s.StepPct / 100
		q.Price *= 1 + move
		q.MarketCap *= 1 + move
		q.Change24h = 0.9*q.Change24h + move*100
		s.quotes[sym] = q
		out[sym] = q
	}
	return out, nil
}
