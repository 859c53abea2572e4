package ranking

import "errors"

// ErrNoCheaters is returned when no wrestler lost by disqualification or
// count out in the window.
var ErrNoCheaters = errors.New("no losses by disqualification or count out")

// ErrNotRanked is returned when a wrestler has no observation in a window.
var ErrNotRanked = errors.New("wrestler not ranked in window")
