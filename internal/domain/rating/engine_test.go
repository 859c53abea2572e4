package rating_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/domain/rating"
	"github.com/okian/kayfabe/internal/matchgen"
	"github.com/okian/kayfabe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errStorage = errors.New("storage unavailable")

// memStore is an in-memory rating.Store.
type memStore struct {
	mu      sync.Mutex
	matches []model.Match
	scores  []model.ScoreObservation
	nextID  int64

	appends     int
	failAppend  int // fail the n-th AppendScores call when > 0
	latestCalls map[int64]int
}

func newMemStore(matches []model.Match) *memStore {
	sorted := append([]model.Match(nil), matches...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &memStore{matches: sorted, latestCalls: make(map[int64]int)}
}

func (s *memStore) UnscoredMatches(_ context.Context, after model.Cursor, limit int) ([]model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scored := make(map[int64]bool)
	for _, o := range s.scores {
		scored[o.MatchID] = true
	}
	var out []model.Match
	for _, m := range s.matches {
		if m.Date.Before(after.Date) || (m.Date.Equal(after.Date) && m.ID <= after.ID) {
			continue
		}
		if scored[m.ID] {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) LatestScore(_ context.Context, id int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestCalls[id]++
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].WrestlerID == id {
			return s.scores[i].Score, true, nil
		}
	}
	return 0, false, nil
}

func (s *memStore) AppendScores(_ context.Context, obs []model.ScoreObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.failAppend > 0 && s.appends == s.failAppend {
		return errStorage
	}
	for _, o := range obs {
		s.nextID++
		o.ID = s.nextID
		s.scores = append(s.scores, o)
	}
	return nil
}

func (s *memStore) DeleteScores(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = nil
	return nil
}

func (s *memStore) log() []model.ScoreObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScoreObservation, len(s.scores))
	for i, o := range s.scores {
		o.ID = 0
		out[i] = o
	}
	return out
}

func (s *memStore) latest() map[int64]int64 {
	out := make(map[int64]int64)
	for _, o := range s.log() {
		out[o.WrestlerID] = o.Score
	}
	return out
}

func singles(id int64, date string, winner, loser int64) model.Match {
	d, _ := model.ParseDay(date)
	m := bout(id, "House Show", "", []int64{winner}, []int64{loser})
	m.Date = d
	return *m
}

func TestEngine(t *testing.T) {
	_ = logger.Init(logger.WithOutput(io.Discard))
	ctx := context.Background()

	Convey("Given an empty score log", t, func() {
		store := newMemStore([]model.Match{
			singles(2, "2024-01-01", 1, 2),
			singles(1, "2024-01-01", 2, 3),
			singles(3, "2024-01-02", 1, 3),
		})
		engine := rating.NewEngine(store)

		rep, err := engine.Run(ctx)

		Convey("Every decided participant gets one observation", func() {
			So(err, ShouldBeNil)
			So(rep.MatchesSeen, ShouldEqual, 3)
			So(rep.MatchesScored, ShouldEqual, 3)
			So(rep.Observations, ShouldEqual, 6)
			So(rep.Commits, ShouldEqual, 1)
			So(rep.RunID, ShouldNotBeEmpty)
		})

		Convey("Matches are replayed in (date, id) order starting from the baseline", func() {
			log := store.log()
			So(log[0], ShouldResemble, model.ScoreObservation{MatchID: 1, WrestlerID: 2, Score: 4005})
			So(log[1], ShouldResemble, model.ScoreObservation{MatchID: 1, WrestlerID: 3, Score: 3995})
			So(log[2].MatchID, ShouldEqual, 2)
			So(log[4].MatchID, ShouldEqual, 3)
		})

		Convey("Each wrestler is looked up in storage at most once", func() {
			for _, n := range store.latestCalls {
				So(n, ShouldEqual, 1)
			}
		})

		Convey("A second run finds nothing to score", func() {
			again, err := engine.Run(ctx)
			So(err, ShouldBeNil)
			So(again.MatchesScored, ShouldEqual, 0)
			So(store.log(), ShouldHaveLength, 6)
		})
	})

	Convey("Given a wrestler with existing history", t, func() {
		store := newMemStore([]model.Match{singles(10, "2024-02-01", 1, 2)})
		So(store.AppendScores(ctx, []model.ScoreObservation{{MatchID: 9, WrestlerID: 1, Score: 3000}, {MatchID: 9, WrestlerID: 1, Score: 5000}}), ShouldBeNil)

		_, err := rating.NewEngine(store).Run(ctx)

		So(err, ShouldBeNil)
		So(store.latest()[1], ShouldBeGreaterThan, 5000)
		So(store.latest()[2], ShouldBeLessThan, 4000)
	})

	Convey("Given a log containing a no contest", t, func() {
		nc := model.Match{ID: 1, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Resolution: "No Contest",
			Participants: []model.Participant{{WrestlerID: 1}, {WrestlerID: 2}}}
		nc.Classify()
		store := newMemStore([]model.Match{nc, singles(2, "2024-01-02", 1, 2)})

		rep, err := rating.NewEngine(store).Run(ctx)

		So(err, ShouldBeNil)
		So(rep.MatchesSkipped, ShouldEqual, 1)
		So(rep.MatchesScored, ShouldEqual, 1)
		for _, o := range store.log() {
			So(o.MatchID, ShouldNotEqual, 1)
		}
	})

	Convey("Given a small commit size", t, func() {
		gen := matchgen.New(matchgen.WithSeed(3))
		store := newMemStore(gen.Matches(50))
		rep, err := rating.NewEngine(store, rating.WithCommitEvery(7)).Run(ctx)

		So(err, ShouldBeNil)
		So(rep.Commits, ShouldEqual, (rep.MatchesScored+6)/7)
		So(rep.MatchesSeen, ShouldEqual, 50)
		So(rep.MatchesScored+rep.MatchesSkipped, ShouldEqual, 50)
	})

	Convey("Given the same log replayed twice from empty storage", t, func() {
		matches := matchgen.New(matchgen.WithSeed(11)).Matches(300)
		first := newMemStore(matches)
		second := newMemStore(matches)

		_, err1 := rating.NewEngine(first, rating.WithCommitEvery(13)).Run(ctx)
		_, err2 := rating.NewEngine(second, rating.WithCommitEvery(1000)).Run(ctx)

		So(err1, ShouldBeNil)
		So(err2, ShouldBeNil)
		So(first.log(), ShouldResemble, second.log())

		Convey("Every score stays positive", func() {
			for _, o := range first.log() {
				So(o.Score, ShouldBeGreaterThanOrEqualTo, 1)
			}
		})

		Convey("A rebuild reproduces the same log", func() {
			rep, err := rating.NewEngine(first).Rebuild(ctx)
			So(err, ShouldBeNil)
			So(rep.Rebuild, ShouldBeTrue)
			So(first.log(), ShouldResemble, second.log())
		})
	})

	Convey("Given storage failing part way through", t, func() {
		matches := matchgen.New(matchgen.WithSeed(5)).Matches(120)
		clean := newMemStore(matches)
		_, err := rating.NewEngine(clean, rating.WithCommitEvery(10)).Run(ctx)
		So(err, ShouldBeNil)

		flaky := newMemStore(matches)
		flaky.failAppend = 3
		_, err = rating.NewEngine(flaky, rating.WithCommitEvery(10)).Run(ctx)

		Convey("The run aborts keeping earlier commits", func() {
			So(errors.Is(err, errStorage), ShouldBeTrue)
			So(flaky.log(), ShouldResemble, clean.log()[:len(flaky.log())])
		})

		Convey("The next run resumes to the same final state", func() {
			_, err := rating.NewEngine(flaky, rating.WithCommitEvery(10)).Run(ctx)
			So(err, ShouldBeNil)
			So(flaky.latest(), ShouldResemble, clean.latest())
		})
	})

	Convey("Given a cancelled context", t, func() {
		store := newMemStore([]model.Match{singles(1, "2024-01-01", 1, 2)})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := rating.NewEngine(store).Run(cctx)

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(store.log(), ShouldBeEmpty)
	})
}
