package rating

import (
	"math"

	"github.com/okian/kayfabe/internal/domain/model"
)

// SkipReason explains why a match produced no observations.
type SkipReason string

const (
	NotSkipped SkipReason = ""
	// SkipNoDecision marks a match with neither winners nor losers.
	SkipNoDecision SkipReason = "no_decision"
	// SkipOneSided marks a match with winners but no losers or the reverse.
	SkipOneSided SkipReason = "one_sided"
)

// Transfer is the outcome of scoring one match.
type Transfer struct {
	MatchID         int64
	WinnerScore     float64
	LoserScore      float64
	MassElimination bool
	Champ           float64
	Differential    float64
	Delta           float64
	// Observations holds one new score per decided participant, winners
	// first, in participant order.
	Observations []model.ScoreObservation
}

// Transfer computes the score movement for m. current returns the running
// score of a wrestler and must not fail; callers resolve storage lookups
// before calling.
func (p Params) Transfer(m *model.Match, current func(wrestlerID int64) int64) (Transfer, SkipReason) {
	var winners, losers []int64
	for _, part := range m.Participants {
		switch part.Outcome {
		case model.Winner:
			winners = append(winners, part.WrestlerID)
		case model.Loser:
			losers = append(losers, part.WrestlerID)
		}
	}

	switch {
	case len(winners) == 0 && len(losers) == 0:
		return Transfer{MatchID: m.ID}, SkipNoDecision
	case len(winners) == 0 || len(losers) == 0:
		return Transfer{MatchID: m.ID}, SkipOneSided
	}

	t := Transfer{MatchID: m.ID}
	for _, id := range winners {
		t.WinnerScore += float64(current(id))
	}

	t.MassElimination = len(winners) == 1 && len(losers) > p.MassEliminationLosers
	if t.MassElimination {
		t.LoserScore = 1
		for _, id := range losers {
			t.LoserScore = math.Max(t.LoserScore, float64(current(id)))
		}
	} else {
		for _, id := range losers {
			t.LoserScore += float64(current(id))
		}
	}

	t.Champ = math.Sqrt(1 + p.ChampionshipIncrement*float64(m.TitleChanges()))

	t.Differential = math.Sqrt(math.Max(t.LoserScore, 1) / math.Max(t.WinnerScore, 1))
	if len(winners) < len(losers) && !t.MassElimination {
		t.Differential /= math.Sqrt(float64(len(losers)) / float64(len(winners)))
	}

	t.Delta = t.Differential * p.DifferenceMaker * p.tierFactor(m.Tier) * t.Champ / p.endingPenalty(m.Ending)
	t.Delta = math.Max(t.Delta, 1)

	t.Observations = make([]model.ScoreObservation, 0, len(winners)+len(losers))
	for _, id := range winners {
		t.Observations = append(t.Observations, observe(m.ID, id, current(id), t.Delta))
	}
	for _, id := range losers {
		t.Observations = append(t.Observations, observe(m.ID, id, current(id), -t.Delta))
	}
	return t, NotSkipped
}

// observe applies delta and rounds half to even, flooring at 1.
func observe(matchID, wrestlerID, score int64, delta float64) model.ScoreObservation {
	next := int64(math.RoundToEven(float64(score) + delta))
	if next < 1 {
		next = 1
	}
	return model.ScoreObservation{MatchID: matchID, WrestlerID: wrestlerID, Score: next}
}
