package ranking

import (
	"context"
	"strings"

	"github.com/okian/kayfabe/internal/domain/model"
)

// Cheater is the wrestler with the most losses by disqualification or
// count out in a window.
type Cheater struct {
	WrestlerID int64  `json:"wrestler_id"`
	Name       string `json:"name,omitempty"`
	Losses     int    `json:"losses"`
	// Endings counts every appearance of the wrestler in the window by
	// how the match ended: the match resolution text, or the wrestler's
	// own outcome when the match has none.
	Endings map[string]int `json:"endings"`
}

// BiggestCheater returns the window's biggest cheater. Ties go to the
// lower wrestler id. ErrNoCheaters is returned when nobody lost that way.
func (a *Aggregator) BiggestCheater(ctx context.Context) (*Cheater, error) {
	rows, err := a.matchEndings(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	for _, r := range rows {
		if r.Outcome == model.Loser && model.ParseEnding(r.Resolution).Cheating() {
			counts[r.WrestlerID]++
		}
	}

	var best *Cheater
	for id, n := range counts {
		if best == nil || n > best.Losses || (n == best.Losses && id < best.WrestlerID) {
			best = &Cheater{WrestlerID: id, Losses: n}
		}
	}
	if best == nil {
		return nil, ErrNoCheaters
	}

	best.Endings = make(map[string]int)
	for _, r := range rows {
		if r.WrestlerID != best.WrestlerID {
			continue
		}
		best.Name = r.Name
		ended := strings.TrimSpace(r.Resolution)
		if ended == "" {
			ended = r.Outcome.String()
		}
		best.Endings[ended]++
	}
	return best, nil
}
