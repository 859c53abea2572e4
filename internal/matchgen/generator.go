// Package matchgen generates deterministic synthetic match logs for
// replay tests and local seeding.
package matchgen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/kayfabe/internal/domain/model"
)

// Default generator configuration constants.
const (
	defaultSeed      = 42
	defaultWrestlers = 40
	defaultPerDay    = 4
	defaultTitles    = 6
)

// Match shape cases, weighted by how often each is drawn.
const (
	caseSingles = iota
	caseTag
	caseHandicap
	caseBattleRoyal
	caseNoContest
	caseOneSided
	caseCount
)

var (
	matchTypes = []string{"House Show", "Event", "Dark Match", "TV-Show", "Pay Per View", "Online Stream"}
	endings    = []string{"", "", "", "", "DQ", "Count Out", "Submission"}
	shapes     = []int{
		caseSingles, caseSingles, caseSingles, caseSingles, caseSingles,
		caseTag, caseTag, caseHandicap, caseBattleRoyal, caseNoContest, caseOneSided,
	}
)

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithWrestlers sets the size of the roster.
func WithWrestlers(n int) Option {
	return func(g *Generator) {
		if n >= 8 {
			g.wrestlers = n
		}
	}
}

// WithStart sets the date of the first match.
func WithStart(day time.Time) Option {
	return func(g *Generator) {
		g.start = model.Day(day)
	}
}

// WithMatchesPerDay sets how many matches share a calendar day.
func WithMatchesPerDay(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.perDay = n
		}
	}
}

// Generator builds a roster and a match log from a seed. Two generators
// with the same options produce identical output.
type Generator struct {
	seed      int64
	wrestlers int
	perDay    int
	start     time.Time
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		seed:      defaultSeed,
		wrestlers: defaultWrestlers,
		perDay:    defaultPerDay,
		start:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wrestlers returns the roster with ids 1..n.
func (g *Generator) Wrestlers() []model.Wrestler {
	out := make([]model.Wrestler, g.wrestlers)
	for i := range out {
		promotion := int64(i%3 + 1)
		out[i] = model.Wrestler{
			ID:          int64(i + 1),
			Name:        fmt.Sprintf("Wrestler %03d", i+1),
			PromotionID: &promotion,
		}
	}
	return out
}

// Matches returns n classified matches with ids 1..n. Same-day matches
// are emitted in descending id order so callers exercise the (date, id)
// sort rather than insertion order.
func (g *Generator) Matches(n int) []model.Match {
	rng := rand.New(rand.NewSource(g.seed)) //nolint:gosec // deterministic seed for reproducible replays
	out := make([]model.Match, 0, n)
	for day := 0; len(out) < n; day++ {
		date := g.start.AddDate(0, 0, day)
		count := min(g.perDay, n-len(out))
		batch := make([]model.Match, count)
		for i := range batch {
			id := int64(len(out) + count - i)
			batch[i] = g.match(rng, id, date)
		}
		out = append(out, batch...)
	}
	return out
}

func (g *Generator) match(rng *rand.Rand, id int64, date time.Time) model.Match {
	m := model.Match{
		ID:        id,
		Date:      date,
		EventID:   id/int64(g.perDay) + 1,
		EventName: fmt.Sprintf("Card %d", id/int64(g.perDay)+1),
		Type:      matchTypes[rng.Intn(len(matchTypes))],
	}

	shape := shapes[rng.Intn(len(shapes))]
	var winners, losers int
	switch shape {
	case caseSingles:
		winners, losers = 1, 1
	case caseTag:
		winners, losers = 2, 2
	case caseHandicap:
		winners, losers = 1, 2+rng.Intn(2)
	case caseBattleRoyal:
		winners, losers = 1, 6+rng.Intn(10)
	case caseNoContest:
		winners, losers = 0, 0
		m.Resolution = "No Contest"
	case caseOneSided:
		winners, losers = 2, 0
	}
	if shape != caseNoContest {
		m.Resolution = endings[rng.Intn(len(endings))]
	}

	picked := g.pick(rng, max(winners+losers, 2))
	for i, wid := range picked {
		outcome := model.NoContest
		switch {
		case winners+losers == 0:
		case i < winners:
			outcome = model.Winner
		case i < winners+losers:
			outcome = model.Loser
		}
		m.Participants = append(m.Participants, model.Participant{WrestlerID: wid, Outcome: outcome})
	}

	if rng.Intn(10) == 0 {
		m.Titles = append(m.Titles, model.Title{
			TitleID: int64(rng.Intn(defaultTitles) + 1),
			Change:  rng.Intn(2) == 0,
		})
	}

	m.Classify()
	return m
}

// pick draws k distinct wrestler ids.
func (g *Generator) pick(rng *rand.Rand, k int) []int64 {
	k = min(k, g.wrestlers)
	perm := rng.Perm(g.wrestlers)[:k]
	ids := make([]int64, k)
	for i, p := range perm {
		ids[i] = int64(p + 1)
	}
	return ids
}

// Shapes reports how many matches are undecided and how many have a
// single winner against more than losers opponents.
func Shapes(matches []model.Match, losers int) (undecided, massElimination int) {
	for i := range matches {
		var w, l int
		for _, p := range matches[i].Participants {
			switch p.Outcome {
			case model.Winner:
				w++
			case model.Loser:
				l++
			}
		}
		if w == 0 || l == 0 {
			undecided++
		}
		if w == 1 && l > losers {
			massElimination++
		}
	}
	return undecided, massElimination
}
