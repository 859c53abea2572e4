package api

import (
	"context"
	"net/http"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/types"
)

// CheaterDependencies defines the interface for the biggest cheater query.
type CheaterDependencies interface {
	Cheater(ctx context.Context, w model.Window) (types.CheaterResponse, error)
}

// CheaterHandler handles cheater requests.
type CheaterHandler struct {
	deps    CheaterDependencies
	windows windowParser
}

// NewCheaterHandler creates a new cheater handler.
func NewCheaterHandler(deps CheaterDependencies, windows windowParser) *CheaterHandler {
	return &CheaterHandler{deps: deps, windows: windows}
}

// HandleGetCheater handles GET /cheater?to=&months= requests. A window
// without disqualification or count-out losses yields 404.
func (h *CheaterHandler) HandleGetCheater(w http.ResponseWriter, r *http.Request) {
	win, err := h.windows.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.deps.Cheater(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
