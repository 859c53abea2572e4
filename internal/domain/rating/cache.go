package rating

import (
	"context"
	"fmt"

	"github.com/okian/kayfabe/pkg/metrics"
)

// LatestFunc resolves a wrestler's most recent persisted score.
type LatestFunc func(ctx context.Context, wrestlerID int64) (score int64, ok bool, err error)

// ScoreCache holds running scores for one replay. It is seeded lazily from
// storage and updated in place after every transfer, so a wrestler is
// looked up at most once per run. A ScoreCache is not safe for concurrent
// use.
type ScoreCache struct {
	latest   LatestFunc
	baseline int64
	scores   map[int64]int64
}

// NewScoreCache returns an empty cache.
func NewScoreCache(latest LatestFunc, baseline int64) *ScoreCache {
	return &ScoreCache{
		latest:   latest,
		baseline: baseline,
		scores:   make(map[int64]int64),
	}
}

// Load makes sure every id has an entry.
func (c *ScoreCache) Load(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		if _, ok := c.scores[id]; ok {
			continue
		}
		metrics.RecordScoreCacheMiss()
		score, ok, err := c.latest(ctx, id)
		if err != nil {
			return fmt.Errorf("latest score of wrestler %d: %w", id, err)
		}
		if !ok {
			score = c.baseline
		}
		c.scores[id] = score
	}
	return nil
}

// Score returns the running score of id, or the baseline when id has not
// been loaded.
func (c *ScoreCache) Score(id int64) int64 {
	if s, ok := c.scores[id]; ok {
		return s
	}
	return c.baseline
}

// Set records a new running score.
func (c *ScoreCache) Set(id, score int64) {
	c.scores[id] = score
}

// Len returns the number of cached wrestlers.
func (c *ScoreCache) Len() int {
	return len(c.scores)
}
