package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/metrics"
)

// defaultCachedWindows bounds the memoized aggregators.
const defaultCachedWindows = 32

// aggregatorCache memoizes one aggregator per window until the next replay
// that changes the score log. The oldest window is evicted first.
type aggregatorCache struct {
	mu      sync.Mutex
	source  ranking.Source
	limit   int
	max     int
	entries map[string]*ranking.Aggregator
	order   []string
}

func newAggregatorCache(source ranking.Source, limit, maxEntries int) *aggregatorCache {
	return &aggregatorCache{
		source:  source,
		limit:   limit,
		max:     maxEntries,
		entries: make(map[string]*ranking.Aggregator),
	}
}

func (c *aggregatorCache) get(w model.Window) *ranking.Aggregator {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := w.String()
	if a, ok := c.entries[key]; ok {
		return a
	}
	if len(c.order) >= c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	a := ranking.New(c.source, w, ranking.WithLimit(c.limit))
	c.entries[key] = a
	c.order = append(c.order, key)
	metrics.UpdateAggregatorCacheEntries(len(c.entries))
	return a
}

func (c *aggregatorCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ranking.Aggregator)
	c.order = nil
	metrics.UpdateAggregatorCacheEntries(0)
}

func (c *aggregatorCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func windowInfo(w model.Window) types.WindowInfo {
	return types.WindowInfo{From: w.From.Format(model.DayLayout), To: w.To.Format(model.DayLayout)}
}

func (s *Service) aggregator(w model.Window) (*ranking.Aggregator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.rankings.get(w), nil
}

// Leaderboard returns the top limit wrestlers of w. limit < 1 returns every
// ranked wrestler.
func (s *Service) Leaderboard(ctx context.Context, w model.Window, limit int) (types.LeaderboardResponse, error) {
	agg, err := s.aggregator(w)
	if err != nil {
		return types.LeaderboardResponse{}, err
	}
	entries, err := agg.Ranking(ctx)
	if err != nil {
		return types.LeaderboardResponse{}, fmt.Errorf("leaderboard %s: %w", w, err)
	}
	total := len(entries)
	if limit > 0 && limit < total {
		entries = entries[:limit]
	}
	return types.LeaderboardResponse{
		Window:   windowInfo(w),
		Previous: windowInfo(agg.PreviousWindow()),
		Total:    total,
		Entries:  entries,
	}, nil
}

// Rank returns a wrestler's rank and score in w and the preceding window.
// ranking.ErrNotRanked is returned when the wrestler is absent from w.
func (s *Service) Rank(ctx context.Context, w model.Window, wrestlerID int64) (types.RankResponse, error) {
	agg, err := s.aggregator(w)
	if err != nil {
		return types.RankResponse{}, err
	}
	if err := agg.Prepare(ctx); err != nil {
		return types.RankResponse{}, err
	}
	e, ok, err := agg.EntryOf(ctx, wrestlerID)
	if err != nil {
		return types.RankResponse{}, err
	}
	if !ok {
		return types.RankResponse{}, fmt.Errorf("wrestler %d in %s: %w", wrestlerID, w, ranking.ErrNotRanked)
	}

	resp := types.RankResponse{
		WrestlerID: wrestlerID,
		Name:       e.Name,
		Window:     windowInfo(w),
		Rank:       e.Rank,
		Score:      e.Score,
	}
	prev, ok, err := agg.PreviousEntryOf(ctx, wrestlerID)
	if err != nil {
		return types.RankResponse{}, err
	}
	if ok {
		resp.PreviousRank, resp.PreviousScore = &prev.Rank, &prev.Score
	}
	return resp, nil
}

// Movement returns the biggest riser, dropper and gainer between w and the
// preceding window.
func (s *Service) Movement(ctx context.Context, w model.Window) (types.MovementResponse, error) {
	agg, err := s.aggregator(w)
	if err != nil {
		return types.MovementResponse{}, err
	}
	if err := agg.Prepare(ctx); err != nil {
		return types.MovementResponse{}, err
	}
	mv, err := agg.Movement(ctx)
	if err != nil {
		return types.MovementResponse{}, fmt.Errorf("movement %s: %w", w, err)
	}
	return types.MovementResponse{
		Window:   windowInfo(w),
		Previous: windowInfo(agg.PreviousWindow()),
		Movement: mv,
	}, nil
}

// Cheater returns the biggest cheater of w, or ranking.ErrNoCheaters.
func (s *Service) Cheater(ctx context.Context, w model.Window) (types.CheaterResponse, error) {
	agg, err := s.aggregator(w)
	if err != nil {
		return types.CheaterResponse{}, err
	}
	c, err := agg.BiggestCheater(ctx)
	if err != nil {
		if errors.Is(err, ranking.ErrNoCheaters) {
			return types.CheaterResponse{}, err
		}
		return types.CheaterResponse{}, fmt.Errorf("cheater %s: %w", w, err)
	}
	return types.CheaterResponse{Window: windowInfo(w), Cheater: *c}, nil
}

// Stats summarizes storage, the replay queue and the last replay.
func (s *Service) Stats(ctx context.Context) (types.StatsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.StatsResponse{}, ErrNotStarted
	}

	st, err := s.store.Stats(ctx)
	if err != nil {
		return types.StatsResponse{}, fmt.Errorf("stats: %w", err)
	}
	resp := types.StatsResponse{
		Wrestlers:       st.Wrestlers,
		Matches:         st.Matches,
		UnscoredMatches: st.UnscoredMatches,
		Scores:          st.Scores,
		QueueDepth:      s.queue.Len(ctx),
		QueueCapacity:   s.queue.Capacity(),
		ReplaysRun:      s.worker.Processed(),
		CachedWindows:   s.rankings.size(),
		Uptime:          time.Since(s.startedAt).Round(time.Second).String(),
	}
	if !st.LastMatch.IsZero() {
		resp.LastMatch = st.LastMatch.Format(model.DayLayout)
	}
	if last, ok := s.worker.Last(); ok {
		resp.LastReplay = &types.ReplayLog{
			RequestID:      last.RequestID,
			Source:         last.Source,
			Rebuild:        last.Request.Rebuild,
			MatchesScored:  last.Report.MatchesScored,
			MatchesSkipped: last.Report.MatchesSkipped,
			Observations:   last.Report.Observations,
			Duration:       last.Report.Duration.String(),
			FinishedAt:     last.FinishedAt,
			Error:          last.Error,
		}
	}
	return resp, nil
}
