// Package smoketest drives a running kayfabe service end to end: it
// triggers a replay, waits for it, then cross-checks the ranking
// endpoints against each other.
package smoketest

import "time"

// Runner configuration constants.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultTopN     = 50
	DefaultTimeout  = 30 * time.Second
	DefaultPoll     = 500 * time.Millisecond
	DefaultMaxWait  = 2 * time.Minute
	reportPerm      = 0o600
	reportDirPerm   = 0o750
	percentMultiple = 100
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL    string        // Base URL of the service
	TopN       int           // Leaderboard entries to cross-check
	Workers    int           // Concurrent rank lookups
	Timeout    time.Duration // HTTP request timeout
	MaxWait    time.Duration // How long to wait for the replay to drain
	Poll       time.Duration // Stats polling interval
	To         string        // Window end, YYYY-MM-DD; empty means today
	Months     int           // Window length in months; 0 uses the server default
	Rebuild    bool          // Ask for a full rebuild instead of an incremental run
	ReportFile string        // Where to write the JSON report; empty skips it
	Verbose    bool          // Enable verbose logging
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TopN < 1 {
		c.TopN = DefaultTopN
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
}

// Report holds the outcome of a smoke run.
type Report struct {
	RequestID          string        `json:"request_id"`
	ReplayWait         time.Duration `json:"replay_wait"`
	LeaderboardEntries int           `json:"leaderboard_entries"`
	RanksChecked       int           `json:"ranks_checked"`
	RanksFailed        int           `json:"ranks_failed"`
	Mismatches         []string      `json:"mismatches,omitempty"`
	Cheater            int64         `json:"cheater,omitempty"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Duration           time.Duration `json:"duration"`
}
