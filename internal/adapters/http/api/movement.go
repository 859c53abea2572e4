package api

import (
	"context"
	"net/http"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/types"
)

// MovementDependencies defines the interface for movement queries.
type MovementDependencies interface {
	Movement(ctx context.Context, w model.Window) (types.MovementResponse, error)
}

// MovementHandler handles movement requests.
type MovementHandler struct {
	deps    MovementDependencies
	windows windowParser
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(deps MovementDependencies, windows windowParser) *MovementHandler {
	return &MovementHandler{deps: deps, windows: windows}
}

// HandleGetMovement handles GET /movement?to=&months= requests.
func (h *MovementHandler) HandleGetMovement(w http.ResponseWriter, r *http.Request) {
	win, err := h.windows.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.deps.Movement(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
