// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/okian/kayfabe/internal/adapters/mq/queue"
	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/logger"
)

// Defaults for query parameters.
const (
	DefaultMonths   = 3
	DefaultMaxLimit = 400
	MaxMonths       = 120
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	MovementDependencies
	CheaterDependencies
	ReplayDependencies
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithDefaultMonths sets the window length used when months is omitted.
func WithDefaultMonths(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.months = n
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithClock sets the clock used when the to parameter is omitted.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	maxLimit int
	months   int
	origins  []string
	now      func() time.Time
	logger   logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	movementHandler    *MovementHandler
	cheaterHandler     *CheaterHandler
	replayHandler      *ReplayHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLimit: DefaultMaxLimit,
		months:   DefaultMonths,
		origins:  []string{"*"},
		now:      time.Now,
		logger:   logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	windows := windowParser{months: s.months, now: s.now}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.leaderboardHandler = NewLeaderboardHandler(deps, windows, s.maxLimit)
	s.rankHandler = NewRankHandler(deps, windows)
	s.movementHandler = NewMovementHandler(deps, windows)
	s.cheaterHandler = NewCheaterHandler(deps, windows)
	s.replayHandler = NewReplayHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	r.HandleFunc("/rank/{wrestler_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank")).Methods(http.MethodGet)
	r.HandleFunc("/movement", MetricsMiddleware(s.movementHandler.HandleGetMovement, "movement")).Methods(http.MethodGet)
	r.HandleFunc("/cheater", MetricsMiddleware(s.cheaterHandler.HandleGetCheater, "cheater")).Methods(http.MethodGet)
	r.HandleFunc("/replays", MetricsMiddleware(s.replayHandler.HandlePostReplay, "replays")).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	s.logger.Debug(ctx, "routes registered", logger.Any("cors_origins", s.origins))
}

// Mount attaches extra routes, such as the API docs, next to the API.
type Mount func(ctx context.Context, r *mux.Router)

// Handler returns the routed API wrapped in CORS handling.
func (s *Server) Handler(ctx context.Context, mounts ...Mount) http.Handler {
	r := mux.NewRouter()
	for _, m := range mounts {
		m(ctx, r)
	}
	s.Register(ctx, r)
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain failures to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ranking.ErrNotRanked), errors.Is(err, ranking.ErrNoCheaters):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// windowParser reads the to and months query parameters.
type windowParser struct {
	months int
	now    func() time.Time
}

func (p windowParser) parse(r *http.Request) (model.Window, error) {
	q := r.URL.Query()

	to := model.Day(p.now())
	if s := q.Get("to"); s != "" {
		d, err := model.ParseDay(s)
		if err != nil {
			return model.Window{}, wrapBadRequest("to must be YYYY-MM-DD")
		}
		to = d
	}

	months := p.months
	if s := q.Get("months"); s != "" {
		n, err := parsePositive(s)
		if err != nil {
			return model.Window{}, wrapBadRequest("months must be a positive integer")
		}
		if n > MaxMonths {
			return model.Window{}, wrapBadRequest(fmt.Sprintf("months must not exceed %d", MaxMonths))
		}
		months = n
	}
	return model.ReportWindow(to, months), nil
}
