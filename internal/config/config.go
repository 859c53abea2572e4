// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and KAYFABE_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBDriver is "sqlite" or "postgres"; DBDSN is passed to the driver as is.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// CommitEvery is the number of scored matches per storage commit.
	CommitEvery int `koanf:"commit_every"`

	// QueueSize bounds the replay request queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the number of remembered replay request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// Rating constants.
	BaselineScore         int64              `koanf:"baseline_score"`
	DifferenceMaker       float64            `koanf:"difference_maker"`
	ChampionshipIncrement float64            `koanf:"championship_increment"`
	MassEliminationLosers int                `koanf:"mass_elimination_losers"`
	EventModifiers        map[string]float64 `koanf:"event_modifiers"`
	ResolutionPenalties   map[string]float64 `koanf:"resolution_penalties"`

	// RankMonths is the trailing report window in calendar months.
	RankMonths int `koanf:"rank_months"`

	// RankLimit caps the number of ranked wrestlers per window.
	RankLimit int `koanf:"rank_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ReplaySchedule is a cron expression; empty disables scheduled replays.
	ReplaySchedule string `koanf:"replay_schedule"`

	// ReplayOnStart enqueues one replay when the server starts.
	ReplayOnStart bool `koanf:"replay_on_start"`

	// AMQPURL enables the ingestion-batch consumer when set.
	AMQPURL   string `koanf:"amqp_url"`
	AMQPQueue string `koanf:"amqp_queue"`

	// CORSOrigins lists origins allowed to call the read API.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		DBDriver:              "sqlite",
		DBDSN:                 "cagematch.sqlite3",
		CommitEvery:           1000,
		QueueSize:             16,
		DedupeSize:            10_000,
		BaselineScore:         4000,
		DifferenceMaker:       5,
		ChampionshipIncrement: 1,
		MassEliminationLosers: 5,
		EventModifiers: map[string]float64{
			"house show":   1,
			"event":        2,
			"dark match":   2.5,
			"tv-show":      4,
			"pay per view": 17,
		},
		ResolutionPenalties: map[string]float64{
			"dq":        1.5,
			"count out": 1.5,
		},
		RankMonths:          3,
		RankLimit:           400,
		MaxLeaderboardLimit: 400,
		AMQPQueue:           "kayfabe.batches",
		CORSOrigins:         []string{"*"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "sqlite" && c.DBDriver != "postgres":
		return fmt.Errorf("%w: db_driver must be sqlite or postgres, got %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.CommitEvery < 1:
		return fmt.Errorf("%w: commit_every must be positive", ErrInvalidConfig)
	case c.BaselineScore < 1:
		return fmt.Errorf("%w: baseline_score must be positive", ErrInvalidConfig)
	case c.DifferenceMaker <= 0:
		return fmt.Errorf("%w: difference_maker must be positive", ErrInvalidConfig)
	case c.RankMonths < 1:
		return fmt.Errorf("%w: rank_months must be positive", ErrInvalidConfig)
	case c.RankLimit < 1:
		return fmt.Errorf("%w: rank_limit must be positive", ErrInvalidConfig)
	}
	for name, v := range c.ResolutionPenalties {
		if v <= 0 {
			return fmt.Errorf("%w: resolution penalty %q must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}
