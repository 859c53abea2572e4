package smoketest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/logger"
)

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, c *HTTPClient, topN int) (types.LeaderboardResponse, error) {
	var lb types.LeaderboardResponse
	q := url.Values{"limit": {strconv.Itoa(topN)}}
	if err := c.getJSON(ctx, "/leaderboard", q, http.StatusOK, &lb); err != nil {
		return lb, fmt.Errorf("leaderboard: %w", err)
	}
	return lb, nil
}

// retrieveRanks looks up every leaderboard wrestler through /rank
// concurrently. Lookups that fail are counted, not fatal.
func retrieveRanks(ctx context.Context, c *HTTPClient, cfg *Config, entries []ranking.Entry) ([]*types.RankResponse, int, error) {
	out := make([]*types.RankResponse, len(entries))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, e := range entries {
		g.Go(func() error {
			var r types.RankResponse
			err := c.getJSON(gctx, "/rank/"+strconv.FormatInt(e.WrestlerID, 10), nil, http.StatusOK, &r)
			switch {
			case err == nil:
				out[i] = &r
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				failed.Add(1)
				if cfg.Verbose {
					logger.Get().Warn(gctx, "rank lookup failed", logger.Int64("wrestler_id", e.WrestlerID), logger.Error(err))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("rank lookups: %w", err)
	}
	return out, int(failed.Load()), nil
}

// getCheater fetches the window's biggest cheater. A 404 means nobody
// qualified and yields nil.
func getCheater(ctx context.Context, c *HTTPClient) (*types.CheaterResponse, error) {
	var ch types.CheaterResponse
	err := c.getJSON(ctx, "/cheater", nil, http.StatusOK, &ch)
	var se *StatusError
	switch {
	case err == nil:
		return &ch, nil
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("cheater: %w", err)
	}
}
