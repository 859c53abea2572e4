// Package types contains the request and response bodies of the HTTP API.
package types

import (
	"time"

	"github.com/okian/kayfabe/internal/domain/ranking"
)

// WindowInfo describes a ranking window on the wire.
type WindowInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LeaderboardResponse is the body of GET /leaderboard.
type LeaderboardResponse struct {
	Window   WindowInfo      `json:"window"`
	Previous WindowInfo      `json:"previous"`
	Total    int             `json:"total"`
	Entries  []ranking.Entry `json:"entries"`
}

// RankResponse is the body of GET /rank/{wrestler_id}. Previous fields are
// nil when the wrestler was not ranked in the preceding window.
type RankResponse struct {
	WrestlerID    int64      `json:"wrestler_id"`
	Name          string     `json:"name,omitempty"`
	Window        WindowInfo `json:"window"`
	Rank          int        `json:"rank"`
	Score         int64      `json:"score"`
	PreviousRank  *int       `json:"previous_rank"`
	PreviousScore *int64     `json:"previous_score"`
}

// MovementResponse is the body of GET /movement.
type MovementResponse struct {
	Window   WindowInfo `json:"window"`
	Previous WindowInfo `json:"previous"`
	ranking.Movement
}

// CheaterResponse is the body of GET /cheater.
type CheaterResponse struct {
	Window WindowInfo `json:"window"`
	ranking.Cheater
}

// ReplayRequest is the body of POST /replays.
type ReplayRequest struct {
	RequestID string `json:"request_id"`
	Rebuild   bool   `json:"rebuild"`
}

// ReplayResponse acknowledges a replay request.
type ReplayResponse struct {
	RequestID  string `json:"request_id"`
	Rebuild    bool   `json:"rebuild"`
	Duplicate  bool   `json:"duplicate"`
	QueueDepth int    `json:"queue_depth"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Wrestlers       int64      `json:"wrestlers"`
	Matches         int64      `json:"matches"`
	UnscoredMatches int64      `json:"unscored_matches"`
	Scores          int64      `json:"scores"`
	LastMatch       string     `json:"last_match,omitempty"`
	QueueDepth      int        `json:"queue_depth"`
	QueueCapacity   int        `json:"queue_capacity"`
	ReplaysRun      int        `json:"replays_run"`
	CachedWindows   int        `json:"cached_windows"`
	LastReplay      *ReplayLog `json:"last_replay,omitempty"`
	Uptime          string     `json:"uptime"`
}

// ReplayLog summarizes the most recent replay.
type ReplayLog struct {
	RequestID      string    `json:"request_id"`
	Source         string    `json:"source"`
	Rebuild        bool      `json:"rebuild"`
	MatchesScored  int       `json:"matches_scored"`
	MatchesSkipped int       `json:"matches_skipped"`
	Observations   int       `json:"observations"`
	Duration       string    `json:"duration"`
	FinishedAt     time.Time `json:"finished_at"`
	Error          string    `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
