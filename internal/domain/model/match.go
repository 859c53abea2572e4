// Package model contains domain models passed between layers.
package model

import "time"

// Outcome is a participant's result in a match. Values match the
// persisted match_wrestlers.resolution column.
type Outcome int

const (
	Loser     Outcome = -1
	NoContest Outcome = 0
	Winner    Outcome = 1
)

// String returns the label used in match-ending breakdowns.
func (o Outcome) String() string {
	switch o {
	case Winner:
		return "win"
	case Loser:
		return "loss"
	default:
		return "no contest"
	}
}

// Wrestler is an entry of the wrestler directory. ID is the stable
// identifier assigned by the upstream data source.
type Wrestler struct {
	ID          int64
	Name        string
	PromotionID *int64
}

// Participant links a wrestler to a match.
type Participant struct {
	WrestlerID int64
	Outcome    Outcome
	GimmickID  *int64 // ring name used, when known
}

// Title is a championship contested in a match.
type Title struct {
	TitleID int64
	Change  bool // the title changed hands
}

// Match is one bout of the match log with its participants and titles
// loaded. Type and Resolution keep the source text; Tier and Ending are
// the tags derived from them when the match was loaded.
type Match struct {
	ID           int64
	Date         time.Time // calendar day, UTC midnight
	EventID      int64
	EventName    string
	Type         string
	TypeDesc     string
	Resolution   string
	Tier         EventTier
	Ending       Ending
	Participants []Participant
	Titles       []Title
}

// Classify derives Tier and Ending from the free-text fields.
func (m *Match) Classify() {
	m.Tier = ParseEventTier(m.Type)
	m.Ending = ParseEnding(m.Resolution)
}

// TitleChanges counts titles that changed hands in the match.
func (m *Match) TitleChanges() int {
	n := 0
	for _, t := range m.Titles {
		if t.Change {
			n++
		}
	}
	return n
}

// Cursor is a position in the (date, id) replay order. The zero value
// sorts before every match.
type Cursor struct {
	Date time.Time
	ID   int64
}

// Next returns the cursor positioned at m.
func (m *Match) Next() Cursor {
	return Cursor{Date: m.Date, ID: m.ID}
}

// ScoreObservation is one append-only entry of the score log. ID is
// assigned by storage and grows in processing order.
type ScoreObservation struct {
	ID         int64
	MatchID    int64
	WrestlerID int64
	Score      int64
}

// Standing is a wrestler's latest score within a ranking window.
type Standing struct {
	WrestlerID  int64
	Name        string
	PromotionID *int64
	Score       int64
}

// EndingRow is one match appearance of a wrestler together with how the
// match ended.
type EndingRow struct {
	MatchID    int64
	WrestlerID int64
	Name       string
	Outcome    Outcome
	Resolution string
}

// ReplayRequest asks the rating engine to process the match log.
type ReplayRequest struct {
	ID          string
	Rebuild     bool   // wipe the score log and replay from empty
	Source      string // http, cron, amqp, startup, cli
	RequestedAt time.Time
}
