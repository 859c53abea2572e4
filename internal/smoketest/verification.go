package smoketest

import (
	"fmt"

	"github.com/okian/kayfabe/internal/domain/types"
)

// verifyResults checks the leaderboard against itself and against the
// per-wrestler rank lookups. It returns one line per disagreement.
func verifyResults(lb types.LeaderboardResponse, ranks []*types.RankResponse) []string {
	var out []string
	if lb.Total < len(lb.Entries) {
		out = append(out, fmt.Sprintf("total %d is below the %d entries returned", lb.Total, len(lb.Entries)))
	}

	for i, e := range lb.Entries {
		if e.Rank != i+1 {
			out = append(out, fmt.Sprintf("entry %d has rank %d", i, e.Rank))
		}
		if i > 0 && e.Score > lb.Entries[i-1].Score {
			out = append(out, fmt.Sprintf("entry %d (score %d) outscores entry %d (score %d)",
				i, e.Score, i-1, lb.Entries[i-1].Score))
		}
		if e.Score < 1 {
			out = append(out, fmt.Sprintf("wrestler %d has non-positive score %d", e.WrestlerID, e.Score))
		}
		if i >= len(ranks) || ranks[i] == nil {
			continue
		}
		r := ranks[i]
		if r.Window != lb.Window {
			out = append(out, fmt.Sprintf("wrestler %d rank window %v differs from leaderboard window %v",
				e.WrestlerID, r.Window, lb.Window))
		}
		if r.Rank != e.Rank || r.Score != e.Score {
			out = append(out, fmt.Sprintf("wrestler %d: leaderboard #%d/%d, rank endpoint #%d/%d",
				e.WrestlerID, e.Rank, e.Score, r.Rank, r.Score))
		}
	}
	return out
}
