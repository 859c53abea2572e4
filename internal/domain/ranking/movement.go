package ranking

import (
	"context"
	"math"
)

// Move is one wrestler's change between the previous and current window.
type Move struct {
	WrestlerID    int64   `json:"wrestler_id"`
	Name          string  `json:"name,omitempty"`
	Rank          int     `json:"rank"`
	PreviousRank  int     `json:"previous_rank"`
	Score         int64   `json:"score"`
	PreviousScore int64   `json:"previous_score"`
	RankDelta     int     `json:"rank_delta"`
	ScoreRatio    float64 `json:"score_ratio"`
}

// Movement holds the extremes among wrestlers ranked in both windows.
// Each field is nil when no wrestler appears in both.
type Movement struct {
	Riser    *Move `json:"riser"`
	Dropper  *Move `json:"dropper"`
	Gainer   *Move `json:"gainer"`
	Compared int   `json:"compared"`
}

// Movement scans the current ranking once and tracks the biggest riser,
// the biggest dropper and the biggest score gainer independently. The
// first wrestler in rank order wins a tie.
func (a *Aggregator) Movement(ctx context.Context) (Movement, error) {
	cur, err := a.currentBoard(ctx)
	if err != nil {
		return Movement{}, err
	}
	prev, err := a.previousBoard(ctx)
	if err != nil {
		return Movement{}, err
	}

	var mv Movement
	for _, e := range cur.Top(0) {
		prevRank, ok := prev.Rank(e.WrestlerID)
		if !ok {
			continue
		}
		prevScore, _ := prev.Score(e.WrestlerID)
		m := &Move{
			WrestlerID:    e.WrestlerID,
			Name:          e.Name,
			Rank:          e.Rank,
			PreviousRank:  prevRank,
			Score:         e.Score,
			PreviousScore: prevScore,
			RankDelta:     prevRank - e.Rank,
			ScoreRatio:    float64(e.Score) / math.Max(float64(prevScore), 1),
		}
		mv.Compared++

		if mv.Riser == nil || m.RankDelta > mv.Riser.RankDelta {
			mv.Riser = m
		}
		if mv.Dropper == nil || m.RankDelta < mv.Dropper.RankDelta {
			mv.Dropper = m
		}
		if mv.Gainer == nil || m.ScoreRatio > mv.Gainer.ScoreRatio {
			mv.Gainer = m
		}
	}
	return mv, nil
}
