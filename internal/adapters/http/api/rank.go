package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/types"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, w model.Window, wrestlerID int64) (types.RankResponse, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps    RankDependencies
	windows windowParser
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies, windows windowParser) *RankHandler {
	return &RankHandler{deps: deps, windows: windows}
}

// HandleGetRank handles GET /rank/{wrestler_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["wrestler_id"], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest("wrestler_id must be a positive integer"))
		return
	}
	win, err := h.windows.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.deps.Rank(r.Context(), win, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
