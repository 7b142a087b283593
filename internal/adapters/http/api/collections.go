package api

import (
	"net/http"

	"github.com/okian/bullrun/internal/domain/pack"
)

// CollectionDependencies defines the interface for collection queries.
type CollectionDependencies interface {
	Collection(playerID string) (pack.Stats, bool)
	Odds(playerID string) pack.Table
}

// CollectionsHandler handles collection requests.
type CollectionsHandler struct {
	deps CollectionDependencies
}

// NewCollectionsHandler creates a new collections handler.
func NewCollectionsHandler(deps CollectionDependencies) *CollectionsHandler {
	return &CollectionsHandler{deps: deps}
}

type collectionResponse struct {
	pack.Stats
	NextPackOdds map[string]float64 `json:"next_pack_odds"`
}

// HandleGetCollection handles GET /collections/{player_id} requests.
func (h *CollectionsHandler) HandleGetCollection(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_collection"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	player := pathParam(r, "/collections/")
	if player == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	stats, ok := h.deps.Collection(player)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Stats: stats, NextPackOdds: h.deps.Odds(player).Map()})
}
