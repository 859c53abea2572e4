package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, w model.Window, limit int) (types.LeaderboardResponse, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	windows  windowParser
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, windows windowParser, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		windows:  windows,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?to=&months=&limit= requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	win, err := h.windows.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	n := h.maxLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err = parsePositive(s); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest("limit must be a positive integer"))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: max %d", ErrLimit, h.maxLimit))
		return
	}

	resp, err := h.deps.Leaderboard(r.Context(), win, n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
