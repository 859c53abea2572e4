package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/types"
)

const maxReplayBody = 4 << 10

// ReplayDependencies defines the interface for replay requests.
type ReplayDependencies interface {
	// RequestReplay queues a replay; it reports duplicates without error.
	RequestReplay(ctx context.Context, r model.ReplayRequest) (bool, error)
	QueueDepth(ctx context.Context) int
}

// ReplayHandler handles replay requests.
type ReplayHandler struct {
	deps ReplayDependencies
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(deps ReplayDependencies) *ReplayHandler {
	return &ReplayHandler{deps: deps}
}

// HandlePostReplay handles POST /replays requests. An empty body asks for
// an incremental replay under a fresh request id.
func (h *ReplayHandler) HandlePostReplay(w http.ResponseWriter, r *http.Request) {
	var body types.ReplayRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxReplayBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest(err.Error()))
		return
	}

	id := strings.TrimSpace(body.RequestID)
	if id == "" {
		id = uuid.NewString()
	}
	req := model.ReplayRequest{
		ID:          id,
		Rebuild:     body.Rebuild,
		Source:      "http",
		RequestedAt: time.Now(),
	}

	duplicate, err := h.deps.RequestReplay(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := types.ReplayResponse{
		RequestID:  id,
		Rebuild:    body.Rebuild,
		Duplicate:  duplicate,
		QueueDepth: h.deps.QueueDepth(r.Context()),
	}
	if duplicate {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}
