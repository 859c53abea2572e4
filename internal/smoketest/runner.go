package smoketest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/logger"
)

// Errors returned by Run.
var (
	ErrReplayTimeout = errors.New("replay did not finish in time")
	ErrReplayFailed  = errors.New("replay failed")
	ErrInconsistent  = errors.New("ranking endpoints disagree")
)

// Run executes the complete smoke test against a running service.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	cfg.defaults()
	log := logger.Get().Named("smoketest")
	report := &Report{StartTime: time.Now()}
	client := newHTTPClient(cfg)

	log.Info(ctx, "starting kayfabe smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("topN", cfg.TopN),
		logger.Int("workers", cfg.Workers),
		logger.Bool("rebuild", cfg.Rebuild))

	// Step 1: Check service health
	if err := client.getJSON(ctx, "/healthz", nil, http.StatusOK, nil); err != nil {
		return report, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Trigger a replay and wait for the worker to drain it
	id, err := triggerReplay(ctx, client, cfg.Rebuild)
	if err != nil {
		return report, err
	}
	report.RequestID = id
	waitStart := time.Now()
	if err := waitForReplay(ctx, client, cfg, id); err != nil {
		return report, err
	}
	report.ReplayWait = time.Since(waitStart)
	log.Info(ctx, "replay finished", logger.String("request_id", id), logger.Duration("wait", report.ReplayWait))

	// Step 3: Leaderboard and concurrent rank lookups
	lb, err := getLeaderboard(ctx, client, cfg.TopN)
	if err != nil {
		return report, err
	}
	report.LeaderboardEntries = len(lb.Entries)

	ranks, failed, err := retrieveRanks(ctx, client, cfg, lb.Entries)
	if err != nil {
		return report, err
	}
	report.RanksChecked = len(ranks) - failed
	report.RanksFailed = failed

	// Step 4: Cheater of the same window
	cheater, err := getCheater(ctx, client)
	if err != nil {
		return report, err
	}
	if cheater != nil {
		report.Cheater = cheater.WrestlerID
	}

	// Step 5: Verify results
	report.Mismatches = verifyResults(lb, ranks)

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	if cfg.ReportFile != "" {
		if err := saveReport(cfg.ReportFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	displayFinalStats(ctx, log, report)

	if len(report.Mismatches) > 0 {
		return report, fmt.Errorf("%w: %d mismatches", ErrInconsistent, len(report.Mismatches))
	}
	return report, nil
}

func triggerReplay(ctx context.Context, c *HTTPClient, rebuild bool) (string, error) {
	req := types.ReplayRequest{RequestID: "smoke-" + uuid.NewString(), Rebuild: rebuild}
	var resp types.ReplayResponse
	if _, err := c.postJSON(ctx, "/replays", req, &resp); err != nil {
		return "", fmt.Errorf("replay request failed: %w", err)
	}
	return resp.RequestID, nil
}

// waitForReplay polls /stats until the last replay is ours.
func waitForReplay(ctx context.Context, c *HTTPClient, cfg *Config, id string) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()
	for {
		var st types.StatsResponse
		if err := c.getJSON(ctx, "/stats", nil, http.StatusOK, &st); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stats: %w", err)
		}
		if st.LastReplay != nil && st.LastReplay.RequestID == id {
			if st.LastReplay.Error != "" {
				return fmt.Errorf("%w: %s", ErrReplayFailed, st.LastReplay.Error)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrReplayTimeout, id)
		case <-ticker.C:
		}
	}
}

func saveReport(filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, reportDirPerm); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, reportPerm); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, r *Report) {
	var successRate float64
	if total := r.RanksChecked + r.RanksFailed; total > 0 {
		successRate = float64(r.RanksChecked) / float64(total) * percentMultiple
	}
	log.Info(ctx, "final statistics",
		logger.String("requestID", r.RequestID),
		logger.Int("leaderboardEntries", r.LeaderboardEntries),
		logger.Int("ranksChecked", r.RanksChecked),
		logger.Int("ranksFailed", r.RanksFailed),
		logger.Int("mismatches", len(r.Mismatches)),
		logger.Int64("cheater", r.Cheater),
		logger.Float64("successRate", successRate),
		logger.Duration("duration", r.Duration))
}
