package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/domain/round"
)

// RoundDependencies defines the interface for round queries.
type RoundDependencies interface {
	Round() round.Round
	History() []repository.Record
	FinishedRound(roundID string) (repository.Record, error)
}

// RoundsHandler handles round requests.
type RoundsHandler struct {
	deps RoundDependencies
	now  func() time.Time
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps, now: time.Now}
}

type roundResponse struct {
	round.Round
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// HandleGetRound handles GET /round requests.
func (h *RoundsHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	cur := h.deps.Round()
	remaining := cur.End.Sub(h.now())
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, roundResponse{Round: cur, RemainingSeconds: int64(remaining / time.Second)})
}

// HandleListRounds handles GET /rounds requests, newest first.
func (h *RoundsHandler) HandleListRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	records := h.deps.History()
	if records == nil {
		records = []repository.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGetFinishedRound handles GET /rounds/{round_id} requests.
func (h *RoundsHandler) HandleGetFinishedRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_finished_round"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := pathParam(r, "/rounds/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.FinishedRound(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
