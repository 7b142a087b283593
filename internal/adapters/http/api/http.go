// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	service "github.com/okian/bullrun/internal/app"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the engine.
type Dependencies interface {
	HandDependencies
	PackDependencies
	LeaderboardDependencies
	RankDependencies
	RoundDependencies
	AssetDependencies
	CollectionDependencies
	StatsProvider
}

// Server wires HTTP routes for the game API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	handsHandler       *HandsHandler
	packsHandler       *PacksHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	roundsHandler      *RoundsHandler
	assetsHandler      *AssetsHandler
	collectionsHandler *CollectionsHandler
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxLimit int
}

// WithMaxLimit caps GET /leaderboard?limit.
func WithMaxLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		handsHandler:       NewHandsHandler(deps),
		packsHandler:       NewPacksHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit),
		rankHandler:        NewRankHandler(deps),
		roundsHandler:      NewRoundsHandler(deps),
		assetsHandler:      NewAssetsHandler(deps),
		collectionsHandler: NewCollectionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/hands", MetricsMiddleware(s.handsHandler.HandlePostHand, "hands"))
	mux.HandleFunc("/hands/", MetricsMiddleware(s.handsHandler.HandleGetHand, "hand"))
	mux.HandleFunc("/packs", MetricsMiddleware(s.packsHandler.HandlePostPack, "packs"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/round", MetricsMiddleware(s.roundsHandler.HandleGetRound, "round"))
	mux.HandleFunc("/rounds", MetricsMiddleware(s.roundsHandler.HandleListRounds, "rounds"))
	mux.HandleFunc("/rounds/", MetricsMiddleware(s.roundsHandler.HandleGetFinishedRound, "finished_round"))
	mux.HandleFunc("/assets", MetricsMiddleware(s.assetsHandler.HandleListAssets, "assets"))
	mux.HandleFunc("/assets/", MetricsMiddleware(s.assetsHandler.HandleGetAsset, "asset"))
	mux.HandleFunc("/collections/", MetricsMiddleware(s.collectionsHandler.HandleGetCollection, "collection"))
}

// StatsProvider reports engine statistics.
type StatsProvider interface {
	Stats(ctx context.Context) service.Stats
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// pathParam returns the single path segment after prefix, or "" when the
// remainder is empty or nested.
func pathParam(r *http.Request, prefix string) string {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" || strings.Contains(p, "/") {
		return ""
	}
	return p
}
