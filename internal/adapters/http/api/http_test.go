package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/kayfabe/internal/adapters/http/api"
	"github.com/okian/kayfabe/internal/adapters/mq/queue"
	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/types"
	"github.com/okian/kayfabe/pkg/logger"
)

type mockDeps struct {
	mu sync.Mutex

	windows   []model.Window
	limits    []int
	rankIDs   []int64
	replays   []model.ReplayRequest
	seen      map[string]bool
	replayErr error
	rankErr   error
	cheatErr  error
	boardErr  error
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: make(map[string]bool)}
}

func info(w model.Window) types.WindowInfo {
	return types.WindowInfo{From: w.From.Format(model.DayLayout), To: w.To.Format(model.DayLayout)}
}

func (m *mockDeps) record(w model.Window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
}

func (m *mockDeps) lastWindow() model.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows[len(m.windows)-1]
}

func (m *mockDeps) Leaderboard(_ context.Context, w model.Window, limit int) (types.LeaderboardResponse, error) {
	m.record(w)
	m.mu.Lock()
	m.limits = append(m.limits, limit)
	m.mu.Unlock()
	if m.boardErr != nil {
		return types.LeaderboardResponse{}, m.boardErr
	}
	entries := []ranking.Entry{
		{Rank: 1, WrestlerID: 7, Name: "Big Van Vader", Score: 1500},
		{Rank: 2, WrestlerID: 3, Name: "Mick Foley", Score: 1200},
	}
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return types.LeaderboardResponse{
		Window:   info(w),
		Previous: info(w.Previous()),
		Total:    2,
		Entries:  entries,
	}, nil
}

func (m *mockDeps) Rank(_ context.Context, w model.Window, id int64) (types.RankResponse, error) {
	m.record(w)
	m.mu.Lock()
	m.rankIDs = append(m.rankIDs, id)
	m.mu.Unlock()
	if m.rankErr != nil {
		return types.RankResponse{}, m.rankErr
	}
	prev := 4
	return types.RankResponse{WrestlerID: id, Window: info(w), Rank: 2, Score: 1200, PreviousRank: &prev}, nil
}

func (m *mockDeps) Movement(_ context.Context, w model.Window) (types.MovementResponse, error) {
	m.record(w)
	return types.MovementResponse{
		Window:   info(w),
		Previous: info(w.Previous()),
		Movement: ranking.Movement{
			Riser:    &ranking.Move{WrestlerID: 3, Rank: 2, PreviousRank: 4, RankDelta: 2},
			Compared: 2,
		},
	}, nil
}

func (m *mockDeps) Cheater(_ context.Context, w model.Window) (types.CheaterResponse, error) {
	m.record(w)
	if m.cheatErr != nil {
		return types.CheaterResponse{}, m.cheatErr
	}
	return types.CheaterResponse{
		Window:  info(w),
		Cheater: ranking.Cheater{WrestlerID: 9, Losses: 3, Endings: map[string]int{"dq": 2, "count out": 1}},
	}, nil
}

func (m *mockDeps) RequestReplay(_ context.Context, r model.ReplayRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replayErr != nil {
		return false, m.replayErr
	}
	if m.seen[r.ID] {
		return true, nil
	}
	m.seen[r.ID] = true
	m.replays = append(m.replays, r)
	return false, nil
}

func (m *mockDeps) QueueDepth(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replays)
}

type mockStats struct {
	resp types.StatsResponse
	err  error
}

func (m *mockStats) Stats(context.Context) (types.StatsResponse, error) {
	return m.resp, m.err
}

func fixedClock() time.Time {
	return time.Date(2024, time.April, 9, 15, 30, 0, 0, time.UTC)
}

func newTestServer(deps *mockDeps, stats *mockStats, opts ...api.Option) *httptest.Server {
	opts = append([]api.Option{api.WithClock(fixedClock), api.WithMaxLimit(50)}, opts...)
	srv := api.NewServer(deps, stats, opts...)
	return httptest.NewServer(srv.Handler(context.Background()))
}

func get(ts *httptest.Server, path string) (*http.Response, []byte) {
	resp, err := http.Get(ts.URL + path)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	return resp, body
}

func post(ts *httptest.Server, path, body string) (*http.Response, []byte) {
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	return resp, out
}

func decodeError(body []byte) types.ErrorResponse {
	var e types.ErrorResponse
	So(json.Unmarshal(body, &e), ShouldBeNil)
	return e
}

func TestMain(m *testing.M) {
	logger.Init(logger.WithOutput(io.Discard))
	m.Run()
}

func TestLeaderboard(t *testing.T) {
	Convey("GET /leaderboard", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps, &mockStats{})
		defer ts.Close()

		Convey("defaults to the trailing window ending today and the max limit", func() {
			resp, body := get(ts, "/leaderboard")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldStartWith, "application/json")

			var lb types.LeaderboardResponse
			So(json.Unmarshal(body, &lb), ShouldBeNil)
			So(lb.Window, ShouldResemble, types.WindowInfo{From: "2024-02-01", To: "2024-04-09"})
			So(lb.Entries, ShouldHaveLength, 2)
			So(lb.Entries[0].WrestlerID, ShouldEqual, 7)
			So(deps.limits, ShouldResemble, []int{50})
		})

		Convey("honours to, months and limit", func() {
			resp, body := get(ts, "/leaderboard?to=2024-03-31&months=1&limit=1")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var lb types.LeaderboardResponse
			So(json.Unmarshal(body, &lb), ShouldBeNil)
			So(lb.Window, ShouldResemble, types.WindowInfo{From: "2024-03-01", To: "2024-03-31"})
			So(lb.Previous, ShouldResemble, types.WindowInfo{From: "2024-02-01", To: "2024-02-29"})
			So(lb.Entries, ShouldHaveLength, 1)
			So(lb.Total, ShouldEqual, 2)
		})

		Convey("rejects bad parameters", func() {
			for _, q := range []string{"limit=0", "limit=abc", "to=2024-13-01", "to=yesterday", "months=0", "months=-2"} {
				resp, body := get(ts, "/leaderboard?"+q)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(decodeError(body).Code, ShouldEqual, "bad_request")
			}
			So(deps.windows, ShouldBeEmpty)
		})

		Convey("rejects windows longer than ten years", func() {
			for _, q := range []string{"months=121", "months=1000000000"} {
				resp, body := get(ts, "/leaderboard?to=2024-03-31&"+q)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				e := decodeError(body)
				So(e.Code, ShouldEqual, "bad_request")
				So(e.Message, ShouldContainSubstring, "120")
			}
			So(deps.windows, ShouldBeEmpty)

			resp, body := get(ts, "/leaderboard?to=2024-03-31&months=120")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var lb types.LeaderboardResponse
			So(json.Unmarshal(body, &lb), ShouldBeNil)
			So(lb.Window, ShouldResemble, types.WindowInfo{From: "2014-04-01", To: "2024-03-31"})
		})

		Convey("rejects limits over the maximum", func() {
			resp, body := get(ts, "/leaderboard?limit=51")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			e := decodeError(body)
			So(e.Code, ShouldEqual, "limit_exceeded")
			So(e.Message, ShouldContainSubstring, "50")
		})

		Convey("maps store failures to 500", func() {
			deps.boardErr = errors.New("database is locked")
			resp, body := get(ts, "/leaderboard")
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(body).Code, ShouldEqual, "internal_error")
		})

		Convey("rejects other methods", func() {
			resp, _ := post(ts, "/leaderboard", "")
			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("GET /rank/{wrestler_id}", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps, &mockStats{}, api.WithDefaultMonths(1))
		defer ts.Close()

		Convey("returns the wrestler's standing", func() {
			resp, body := get(ts, "/rank/3")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var r types.RankResponse
			So(json.Unmarshal(body, &r), ShouldBeNil)
			So(r.WrestlerID, ShouldEqual, 3)
			So(r.Rank, ShouldEqual, 2)
			So(*r.PreviousRank, ShouldEqual, 4)
			So(r.PreviousScore, ShouldBeNil)
			So(r.Window, ShouldResemble, types.WindowInfo{From: "2024-04-01", To: "2024-04-09"})
			So(deps.rankIDs, ShouldResemble, []int64{3})
		})

		Convey("rejects invalid ids", func() {
			for _, id := range []string{"abc", "0", "-4", "1.5"} {
				resp, body := get(ts, "/rank/"+id)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(decodeError(body).Code, ShouldEqual, "bad_request")
			}
			So(deps.rankIDs, ShouldBeEmpty)
		})

		Convey("answers 404 for unranked wrestlers", func() {
			deps.rankErr = fmt.Errorf("wrestler 3: %w", ranking.ErrNotRanked)
			resp, body := get(ts, "/rank/3")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(decodeError(body).Code, ShouldEqual, "not_found")
		})
	})
}

func TestMovementAndCheater(t *testing.T) {
	Convey("Given the movement and cheater endpoints", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps, &mockStats{})
		defer ts.Close()

		Convey("movement reports the current and previous windows", func() {
			resp, body := get(ts, "/movement?to=2024-03-31&months=3")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var mv types.MovementResponse
			So(json.Unmarshal(body, &mv), ShouldBeNil)
			So(mv.Window, ShouldResemble, types.WindowInfo{From: "2024-01-01", To: "2024-03-31"})
			So(mv.Previous, ShouldResemble, types.WindowInfo{From: "2023-10-01", To: "2023-12-31"})
			So(mv.Riser, ShouldNotBeNil)
			So(mv.Riser.RankDelta, ShouldEqual, 2)
			So(mv.Dropper, ShouldBeNil)
			So(mv.Compared, ShouldEqual, 2)
		})

		Convey("cheater returns the wrestler and ending breakdown", func() {
			resp, body := get(ts, "/cheater?months=2")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var c types.CheaterResponse
			So(json.Unmarshal(body, &c), ShouldBeNil)
			So(c.WrestlerID, ShouldEqual, 9)
			So(c.Losses, ShouldEqual, 3)
			So(c.Endings["dq"], ShouldEqual, 2)
			So(deps.lastWindow().From, ShouldEqual, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
		})

		Convey("cheater answers 404 when nobody lost by cheating", func() {
			deps.cheatErr = ranking.ErrNoCheaters
			resp, body := get(ts, "/cheater")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(decodeError(body).Code, ShouldEqual, "not_found")
		})
	})
}

func TestReplays(t *testing.T) {
	Convey("POST /replays", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps, &mockStats{})
		defer ts.Close()

		Convey("accepts an empty body under a generated id", func() {
			resp, body := post(ts, "/replays", "")
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

			var r types.ReplayResponse
			So(json.Unmarshal(body, &r), ShouldBeNil)
			So(r.RequestID, ShouldNotBeEmpty)
			So(r.Duplicate, ShouldBeFalse)
			So(r.QueueDepth, ShouldEqual, 1)
			So(deps.replays, ShouldHaveLength, 1)
			So(deps.replays[0].Source, ShouldEqual, "http")
			So(deps.replays[0].Rebuild, ShouldBeFalse)
		})

		Convey("reports duplicates with 200", func() {
			resp, _ := post(ts, "/replays", `{"request_id":"nightly","rebuild":true}`)
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(deps.replays[0].Rebuild, ShouldBeTrue)

			resp, body := post(ts, "/replays", `{"request_id":" nightly "}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var r types.ReplayResponse
			So(json.Unmarshal(body, &r), ShouldBeNil)
			So(r.Duplicate, ShouldBeTrue)
			So(r.RequestID, ShouldEqual, "nightly")
			So(deps.replays, ShouldHaveLength, 1)
		})

		Convey("rejects malformed bodies", func() {
			for _, b := range []string{`{`, `{"rebuild":"yes"}`, `{"unknown":1}`} {
				resp, body := post(ts, "/replays", b)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(decodeError(body).Code, ShouldEqual, "bad_request")
			}
			So(deps.replays, ShouldBeEmpty)
		})

		Convey("answers 429 under backpressure", func() {
			deps.replayErr = fmt.Errorf("enqueue: %w", queue.ErrBackpressure)
			resp, body := post(ts, "/replays", "")
			So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(body).Code, ShouldEqual, "backpressure")
		})

		Convey("answers 503 once the queue is closed", func() {
			deps.replayErr = queue.ErrQueueClosed
			resp, _ := post(ts, "/replays", "")
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		stats := &mockStats{resp: types.StatsResponse{Wrestlers: 12, Matches: 40, QueueCapacity: 16, Uptime: "1m0s"}}
		ts := newTestServer(newMockDeps(), stats)
		defer ts.Close()

		Convey("stats returns the provider's snapshot", func() {
			resp, body := get(ts, "/stats")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var s types.StatsResponse
			So(json.Unmarshal(body, &s), ShouldBeNil)
			So(s.Wrestlers, ShouldEqual, 12)
			So(s.Matches, ShouldEqual, 40)
			So(s.QueueCapacity, ShouldEqual, 16)
		})

		Convey("stats failures become 500", func() {
			stats.err = errors.New("boom")
			resp, _ := get(ts, "/stats")
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("healthz exposes prometheus metrics", func() {
			get(ts, "/leaderboard")
			resp, body := get(ts, "/healthz")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "http_requests_total")
		})

		Convey("unknown routes answer a JSON 404", func() {
			resp, body := get(ts, "/nope")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(decodeError(body).Code, ShouldEqual, "not_found")
		})
	})
}

func TestCORS(t *testing.T) {
	Convey("Given a server restricted to one origin", t, func() {
		ts := newTestServer(newMockDeps(), &mockStats{}, api.WithCORSOrigins([]string{"https://cagematch.example"}))
		defer ts.Close()

		request := func(origin string) *http.Response {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/leaderboard", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Origin", origin)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			return resp
		}

		Convey("allowed origins are echoed back", func() {
			resp := request("https://cagematch.example")
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "https://cagematch.example")
		})

		Convey("other origins get no CORS headers", func() {
			resp := request("https://elsewhere.example")
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})
	})
}
