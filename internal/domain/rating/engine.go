package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// DefaultCommitEvery is the number of scored matches per storage commit.
const DefaultCommitEvery = 1000

// Store is the storage the engine replays against.
type Store interface {
	// UnscoredMatches returns up to limit matches after cursor in (date, id)
	// order that have no score observations, with participants and titles
	// loaded. Stores may leave out matches lacking a winner or a loser; the
	// engine skips those anyway.
	UnscoredMatches(ctx context.Context, after model.Cursor, limit int) ([]model.Match, error)
	// LatestScore returns the most recently appended score of a wrestler.
	LatestScore(ctx context.Context, wrestlerID int64) (int64, bool, error)
	// AppendScores persists observations in one transaction, in order.
	AppendScores(ctx context.Context, obs []model.ScoreObservation) error
	// DeleteScores truncates the score log.
	DeleteScores(ctx context.Context) error
}

// Report summarizes one replay.
type Report struct {
	RunID          string        `json:"run_id"`
	Rebuild        bool          `json:"rebuild"`
	MatchesSeen    int           `json:"matches_seen"`
	MatchesScored  int           `json:"matches_scored"`
	MatchesSkipped int           `json:"matches_skipped"`
	Observations   int           `json:"observations"`
	Commits        int           `json:"commits"`
	Wrestlers      int           `json:"wrestlers"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams sets the transfer constants.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithCommitEvery sets how many scored matches are buffered per commit.
func WithCommitEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commitEvery = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine replays unscored matches in (date, id) order and appends one
// score observation per decided participant. Runs are serialized.
type Engine struct {
	store       Store
	params      Params
	commitEvery int
	logger      logger.Logger

	mu sync.Mutex
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		params:      DefaultParams(),
		commitEvery: DefaultCommitEvery,
		logger:      logger.Get().Named("rating"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's transfer constants.
func (e *Engine) Params() Params {
	return e.params
}

// Run scores every match that has no observations yet. On error the
// uncommitted tail is dropped; those matches stay unscored and are picked
// up by the next run.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(ctx, false)
}

// Rebuild truncates the score log and replays the whole match log.
func (e *Engine) Rebuild(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.DeleteScores(ctx); err != nil {
		metrics.RecordReplayRun("error", 0)
		metrics.RecordErrorByComponent("rating", "delete_scores")
		return Report{}, fmt.Errorf("delete scores: %w", err)
	}
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, rebuild bool) (Report, error) {
	rep := Report{
		RunID:     uuid.NewString(),
		Rebuild:   rebuild,
		StartedAt: time.Now(),
	}
	log := e.logger
	log.Info(ctx, "replay started", logger.String("run_id", rep.RunID), logger.Bool("rebuild", rebuild))

	err := e.replay(ctx, &rep)
	rep.Duration = time.Since(rep.StartedAt)

	status := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	case err != nil:
		status = "error"
		metrics.RecordErrorByComponent("rating", "replay")
	}
	metrics.RecordReplayRun(status, rep.Duration)

	fields := []logger.Field{
		logger.String("run_id", rep.RunID),
		logger.Int("matches_seen", rep.MatchesSeen),
		logger.Int("matches_scored", rep.MatchesScored),
		logger.Int("matches_skipped", rep.MatchesSkipped),
		logger.Int("observations", rep.Observations),
		logger.Int("commits", rep.Commits),
		logger.Duration("took", rep.Duration),
	}
	if err != nil {
		log.Error(ctx, "replay aborted", append(fields, logger.Error(err))...)
		return rep, err
	}
	log.Info(ctx, "replay finished", fields...)
	return rep, nil
}

func (e *Engine) replay(ctx context.Context, rep *Report) error {
	cache := NewScoreCache(e.store.LatestScore, e.params.Baseline)
	pending := make([]model.ScoreObservation, 0, e.commitEvery*2)
	buffered := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := e.store.AppendScores(ctx, pending); err != nil {
			return fmt.Errorf("append %d scores: %w", len(pending), err)
		}
		rep.Observations += len(pending)
		rep.Commits++
		metrics.RecordObservationsWritten(len(pending))
		metrics.RecordReplayCommit()
		metrics.UpdateScoreCacheSize(cache.Len())
		pending = pending[:0]
		buffered = 0
		return nil
	}

	var cursor model.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay interrupted: %w", err)
		}
		page, err := e.store.UnscoredMatches(ctx, cursor, e.commitEvery)
		if err != nil {
			return fmt.Errorf("load matches: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			m := &page[i]
			cursor = m.Next()
			rep.MatchesSeen++

			if err := cache.Load(ctx, decided(m)...); err != nil {
				return err
			}
			t, skip := e.params.Transfer(m, cache.Score)
			if skip != NotSkipped {
				rep.MatchesSkipped++
				metrics.RecordMatchSkipped(string(skip))
				e.logSkip(ctx, m, skip)
				continue
			}

			for _, obs := range t.Observations {
				cache.Set(obs.WrestlerID, obs.Score)
			}
			pending = append(pending, t.Observations...)
			rep.MatchesScored++
			buffered++
			metrics.RecordMatchScored()

			if buffered >= e.commitEvery {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}
	rep.Wrestlers = cache.Len()
	metrics.UpdateScoreCacheSize(cache.Len())
	return nil
}

func (e *Engine) logSkip(ctx context.Context, m *model.Match, skip SkipReason) {
	fields := []logger.Field{
		logger.Int64("match_id", m.ID),
		logger.String("event", m.EventName),
		logger.String("date", m.Date.Format(model.DayLayout)),
		logger.String("resolution", m.Resolution),
		logger.String("reason", string(skip)),
	}
	if skip == SkipNoDecision {
		e.logger.Debug(ctx, "match skipped", fields...)
		return
	}
	e.logger.Info(ctx, "match skipped", fields...)
}

// decided returns the ids of winners and losers of m.
func decided(m *model.Match) []int64 {
	ids := make([]int64, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p.Outcome != model.NoContest {
			ids = append(ids, p.WrestlerID)
		}
	}
	return ids
}
