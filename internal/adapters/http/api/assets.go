package api

import (
	"net/http"
	"strings"

	"github.com/okian/bullrun/internal/domain/asset"
)

// AssetDependencies defines the interface for asset queries.
type AssetDependencies interface {
	Assets() []asset.Asset
	Asset(symbol string) (asset.Asset, bool)
}

// AssetsHandler handles asset requests.
type AssetsHandler struct {
	deps AssetDependencies
}

// NewAssetsHandler creates a new assets handler.
func NewAssetsHandler(deps AssetDependencies) *AssetsHandler {
	return &AssetsHandler{deps: deps}
}

// assetView adds the tier name to an asset.
type assetView struct {
	asset.Asset
	Tier string `json:"tier"`
}

func viewOf(a asset.Asset) assetView { //nolint:gocritic // hugeParam: assets are values
	return assetView{Asset: a, Tier: a.Rarity.String()}
}

// HandleListAssets handles GET /assets requests.
func (h *AssetsHandler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	all := h.deps.Assets()
	out := make([]assetView, len(all))
	for i, a := range all {
		out[i] = viewOf(a)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetAsset handles GET /assets/{symbol} requests.
func (h *AssetsHandler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_asset"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	symbol := strings.ToUpper(pathParam(r, "/assets/"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	a, ok := h.deps.Asset(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}
