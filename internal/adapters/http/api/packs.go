package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/bullrun/internal/domain/pack"
)

// PackDependencies defines the interface for pack opening.
type PackDependencies interface {
	OpenPack(ctx context.Context, requestID string, req pack.Request) (pack.Pack, bool, error)
}

// PacksHandler handles pack requests.
type PacksHandler struct {
	deps PackDependencies
}

// NewPacksHandler creates a new packs handler.
func NewPacksHandler(deps PackDependencies) *PacksHandler {
	return &PacksHandler{deps: deps}
}

// packRequest is the body of POST /packs. RequestID makes retries safe.
type packRequest struct {
	RequestID string `json:"request_id"`
	PlayerID  string `json:"player_id"`
	Type      string `json:"type"`
	Source    string `json:"source"`
}

func (p packRequest) validate() error {
	switch {
	case strings.TrimSpace(p.RequestID) == "":
		return errors.New("missing request_id")
	case strings.TrimSpace(p.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(p.Type) == "":
		return errors.New("missing type")
	}
	return nil
}

type packResponse struct {
	Duplicate bool      `json:"duplicate"`
	Pack      pack.Pack `json:"pack"`
}

// HandlePostPack handles POST /packs requests.
func (h *PacksHandler) HandlePostPack(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_pack"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req packRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	typ, err := pack.ParseType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_pack_type", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, dup, err := h.deps.OpenPack(r.Context(), req.RequestID, pack.Request{
		PlayerID: req.PlayerID,
		Type:     typ,
		Source:   req.Source,
	})
	switch {
	case err == nil && dup:
		writeJSON(w, http.StatusOK, packResponse{Duplicate: true, Pack: p})
	case err == nil:
		writeJSON(w, http.StatusCreated, packResponse{Pack: p})
	case errors.Is(err, pack.ErrUnknownPackType), errors.Is(err, pack.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
