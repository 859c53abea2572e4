package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/kayfabe/internal/app"
	"github.com/okian/kayfabe/internal/config"
	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/logger"
)

func TestMainApplication(t *testing.T) {
	_ = logger.Init(logger.WithOutput(io.Discard))

	convey.Convey("Given configuration from the environment", t, func() {
		t.Setenv("KAYFABE_DB_DSN", filepath.Join(t.TempDir(), "kayfabe.sqlite3"))
		t.Setenv("KAYFABE_MAX_LEADERBOARD_LIMIT", "25")
		t.Setenv("KAYFABE_RANK_MONTHS", "2")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 25)

		svc := service.New(cfg)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		ts := httptest.NewServer(newHandler(ctx, cfg, svc))
		defer ts.Close()

		convey.Convey("Then the API and docs are routed together", func() {
			for path, want := range map[string]int{
				"/healthz":              http.StatusOK,
				"/stats":                http.StatusOK,
				"/openapi.yaml":         http.StatusOK,
				"/leaderboard":          http.StatusOK,
				"/leaderboard?limit=26": http.StatusBadRequest,
				"/rank/1":               http.StatusNotFound,
			} {
				resp, err := http.Get(ts.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, want)
			}
		})

		convey.Convey("And the leaderboard uses the configured window length", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?to=2024-03-31")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			var lb types.LeaderboardResponse
			convey.So(json.NewDecoder(resp.Body).Decode(&lb), convey.ShouldBeNil)
			convey.So(lb.Window.From, convey.ShouldEqual, "2024-02-01")
			convey.So(lb.Entries, convey.ShouldBeEmpty)
		})

		convey.Convey("And replays are accepted", func() {
			resp, err := http.Post(ts.URL+"/replays", "application/json", http.NoBody)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
		})

		convey.Convey("And the metrics updater returns once cancelled", func() {
			short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
			defer stop()
			convey.So(func() { startServiceMetricsUpdater(short, svc) }, convey.ShouldNotPanic)
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("KAYFABE_DB_DRIVER", "mysql")

		convey.Convey("Then loading fails", func() {
			cfg, err := config.Load(context.Background())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}
