package model

import "strings"

// EventTier classifies the card a match was on.
type EventTier int

const (
	TierOther EventTier = iota
	TierHouseShow
	TierEvent
	TierDarkMatch
	TierTV
	TierPayPerView
)

var tierNames = map[EventTier]string{
	TierOther:      "other",
	TierHouseShow:  "house show",
	TierEvent:      "event",
	TierDarkMatch:  "dark match",
	TierTV:         "tv-show",
	TierPayPerView: "pay per view",
}

func (t EventTier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return tierNames[TierOther]
}

// ParseEventTier maps match type text to a tier, ignoring case and
// surrounding space. Unknown text yields TierOther.
func ParseEventTier(s string) EventTier {
	switch normalize(s) {
	case "house show":
		return TierHouseShow
	case "event":
		return TierEvent
	case "dark match":
		return TierDarkMatch
	case "tv-show", "tv show":
		return TierTV
	case "pay per view", "pay-per-view", "ppv":
		return TierPayPerView
	default:
		return TierOther
	}
}

// Ending classifies how a match finished.
type Ending int

const (
	EndingOther Ending = iota
	EndingClean
	EndingDisqualification
	EndingCountOut
	EndingNoContest
)

var endingNames = map[Ending]string{
	EndingOther:            "other",
	EndingClean:            "clean",
	EndingDisqualification: "dq",
	EndingCountOut:         "count out",
	EndingNoContest:        "no contest",
}

func (e Ending) String() string {
	if s, ok := endingNames[e]; ok {
		return s
	}
	return endingNames[EndingOther]
}

// Cheating reports whether the ending is a disqualification or count out.
func (e Ending) Cheating() bool {
	return e == EndingDisqualification || e == EndingCountOut
}

// ParseEnding maps match resolution text to an ending. Empty text is a
// clean finish; unknown text yields EndingOther.
func ParseEnding(s string) Ending {
	switch normalize(s) {
	case "":
		return EndingClean
	case "dq", "disqualification":
		return EndingDisqualification
	case "count out", "countout", "count-out":
		return EndingCountOut
	case "no contest", "nc":
		return EndingNoContest
	default:
		return EndingOther
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
