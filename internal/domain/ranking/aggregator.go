// Package ranking answers windowed leaderboard and movement queries over
// the score log.
package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// DefaultLimit is the number of wrestlers ranked per window.
const DefaultLimit = 400

// Source is the read side of the score log.
type Source interface {
	// LatestScores returns, for every wrestler with an observation in w,
	// their latest observation in w, ordered by score descending. At most
	// limit rows are returned.
	LatestScores(ctx context.Context, w model.Window, limit int) ([]model.Standing, error)
	// MatchEndings returns every match appearance inside w.
	MatchEndings(ctx context.Context, w model.Window) ([]model.EndingRow, error)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLimit sets how many wrestlers are ranked per window.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator ranks one window and the window preceding it. Each window's
// result set is loaded from the source at most once per Aggregator.
// An Aggregator is safe for concurrent use.
type Aggregator struct {
	source Source
	window model.Window
	limit  int
	logger logger.Logger

	current  lazy[*Board]
	previous lazy[*Board]
	endings  lazy[[]model.EndingRow]
}

// lazy memoizes a successful load. Failed loads are retried on the next
// call.
type lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.value, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	l.value, l.loaded = v, true
	return v, nil
}

// New creates an aggregator for window.
func New(source Source, window model.Window, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		window: window,
		limit:  DefaultLimit,
		logger: logger.Get().Named("ranking"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Window returns the ranked window.
func (a *Aggregator) Window() model.Window { return a.window }

// PreviousWindow returns the window compared against.
func (a *Aggregator) PreviousWindow() model.Window { return a.window.Previous() }

// Prepare loads both windows concurrently.
func (a *Aggregator) Prepare(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.currentBoard(gctx)
		return err
	})
	g.Go(func() error {
		_, err := a.previousBoard(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prepare ranking %s: %w", a.window, err)
	}
	return nil
}

// Ranking returns the leaderboard of the window.
func (a *Aggregator) Ranking(ctx context.Context) ([]Entry, error) {
	b, err := a.currentBoard(ctx)
	if err != nil {
		return nil, err
	}
	return b.Top(0), nil
}

// RankOf returns a wrestler's position in the window; ok is false when
// the wrestler has no observation in it.
func (a *Aggregator) RankOf(ctx context.Context, wrestlerID int64) (rank int, ok bool, err error) {
	b, err := a.currentBoard(ctx)
	if err != nil {
		return 0, false, err
	}
	rank, ok = b.Rank(wrestlerID)
	return rank, ok, nil
}

// ScoreOf returns a wrestler's latest score in the window.
func (a *Aggregator) ScoreOf(ctx context.Context, wrestlerID int64) (score int64, ok bool, err error) {
	b, err := a.currentBoard(ctx)
	if err != nil {
		return 0, false, err
	}
	score, ok = b.Score(wrestlerID)
	return score, ok, nil
}

// EntryOf returns a wrestler's leaderboard row in the window.
func (a *Aggregator) EntryOf(ctx context.Context, wrestlerID int64) (Entry, bool, error) {
	b, err := a.currentBoard(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := b.Entry(wrestlerID)
	return e, ok, nil
}

// PreviousRanking returns the leaderboard of the preceding window.
func (a *Aggregator) PreviousRanking(ctx context.Context) ([]Entry, error) {
	b, err := a.previousBoard(ctx)
	if err != nil {
		return nil, err
	}
	return b.Top(0), nil
}

// PreviousRankOf is RankOf over the preceding window.
func (a *Aggregator) PreviousRankOf(ctx context.Context, wrestlerID int64) (rank int, ok bool, err error) {
	b, err := a.previousBoard(ctx)
	if err != nil {
		return 0, false, err
	}
	rank, ok = b.Rank(wrestlerID)
	return rank, ok, nil
}

// PreviousScoreOf is ScoreOf over the preceding window.
func (a *Aggregator) PreviousScoreOf(ctx context.Context, wrestlerID int64) (score int64, ok bool, err error) {
	b, err := a.previousBoard(ctx)
	if err != nil {
		return 0, false, err
	}
	score, ok = b.Score(wrestlerID)
	return score, ok, nil
}

// PreviousEntryOf is EntryOf over the preceding window.
func (a *Aggregator) PreviousEntryOf(ctx context.Context, wrestlerID int64) (Entry, bool, error) {
	b, err := a.previousBoard(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := b.Entry(wrestlerID)
	return e, ok, nil
}

func (a *Aggregator) currentBoard(ctx context.Context) (*Board, error) {
	return a.current.get(func() (*Board, error) {
		b, err := a.load(ctx, "current", a.window)
		if err == nil {
			metrics.UpdateRankedWrestlers(b.Len())
		}
		return b, err
	})
}

func (a *Aggregator) previousBoard(ctx context.Context) (*Board, error) {
	return a.previous.get(func() (*Board, error) {
		return a.load(ctx, "previous", a.window.Previous())
	})
}

func (a *Aggregator) load(ctx context.Context, which string, w model.Window) (*Board, error) {
	start := time.Now()
	rows, err := a.source.LatestScores(ctx, w, a.limit)
	metrics.RecordRankingQueryLatency("latest_scores", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("ranking", "latest_scores")
		return nil, fmt.Errorf("load %s window %s: %w", which, w, err)
	}
	a.logger.Debug(ctx, "window loaded",
		logger.String("window", w.String()),
		logger.String("which", which),
		logger.Int("rows", len(rows)),
	)
	return NewBoard(rows), nil
}

func (a *Aggregator) matchEndings(ctx context.Context) ([]model.EndingRow, error) {
	return a.endings.get(func() ([]model.EndingRow, error) {
		start := time.Now()
		rows, err := a.source.MatchEndings(ctx, a.window)
		metrics.RecordRankingQueryLatency("match_endings", float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordErrorByComponent("ranking", "match_endings")
			return nil, fmt.Errorf("load match endings %s: %w", a.window, err)
		}
		return rows, nil
	})
}
