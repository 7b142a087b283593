package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/bullrun/internal/adapters/repository"
	service "github.com/okian/bullrun/internal/app"
	"github.com/okian/bullrun/internal/domain/hand"
)

// HandDependencies defines the interface for hand submission.
type HandDependencies interface {
	SubmitHand(ctx context.Context, playerID string, refs []int) (service.Submission, error)
	Hand(playerID string) (*hand.Hand, error)
}

// HandsHandler handles hand requests.
type HandsHandler struct {
	deps HandDependencies
}

// NewHandsHandler creates a new hands handler.
func NewHandsHandler(deps HandDependencies) *HandsHandler {
	return &HandsHandler{deps: deps}
}

// handRequest is the body of POST /hands. Assets are catalog indexes.
type handRequest struct {
	PlayerID string `json:"player_id"`
	Assets   []int  `json:"assets"`
}

// HandlePostHand handles POST /hands requests.
func (h *HandsHandler) HandlePostHand(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_hand"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req handRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing player_id")))
		return
	}

	sub, err := h.deps.SubmitHand(r.Context(), req.PlayerID, req.Assets)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, sub)
	case errors.Is(err, hand.ErrHandExists):
		writeError(w, http.StatusConflict, "hand_exists", Wrap(op, err))
	case errors.Is(err, hand.ErrInvalidHand):
		writeError(w, http.StatusBadRequest, "invalid_hand", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// HandleGetHand handles GET /hands/{player_id} requests.
func (h *HandsHandler) HandleGetHand(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_hand"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	player := pathParam(r, "/hands/")
	if player == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	got, err := h.deps.Hand(player)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, got)
}
