// Package rating replays the match log and derives each wrestler's score.
package rating

import (
	"github.com/okian/kayfabe/internal/domain/model"
)

// Default rating constants.
const (
	DefaultBaseline              = 4000
	DefaultDifferenceMaker       = 5
	DefaultChampionshipIncrement = 1
	DefaultMassEliminationLosers = 5
)

// Params holds every tunable constant of the transfer formula.
type Params struct {
	Baseline              int64
	DifferenceMaker       float64
	ChampionshipIncrement float64
	// MassEliminationLosers is the loser count a single winner must exceed
	// for the bout to be scored as a mass elimination.
	MassEliminationLosers int
	TierFactors           map[model.EventTier]float64
	EndingPenalties       map[model.Ending]float64
}

// ParamOption configures Params.
type ParamOption func(*Params)

// DefaultParams returns the standard tables.
func DefaultParams() Params {
	return Params{
		Baseline:              DefaultBaseline,
		DifferenceMaker:       DefaultDifferenceMaker,
		ChampionshipIncrement: DefaultChampionshipIncrement,
		MassEliminationLosers: DefaultMassEliminationLosers,
		TierFactors: map[model.EventTier]float64{
			model.TierHouseShow:  1,
			model.TierEvent:      2,
			model.TierDarkMatch:  2.5,
			model.TierTV:         4,
			model.TierPayPerView: 17,
		},
		EndingPenalties: map[model.Ending]float64{
			model.EndingDisqualification: 1.5,
			model.EndingCountOut:         1.5,
		},
	}
}

// NewParams applies opts on top of DefaultParams.
func NewParams(opts ...ParamOption) Params {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithBaseline sets the score of wrestlers with no history.
func WithBaseline(score int64) ParamOption {
	return func(p *Params) {
		if score > 0 {
			p.Baseline = score
		}
	}
}

// WithDifferenceMaker sets the global transfer multiplier.
func WithDifferenceMaker(m float64) ParamOption {
	return func(p *Params) {
		if m > 0 {
			p.DifferenceMaker = m
		}
	}
}

// WithChampionshipIncrement sets the weight of each title change.
func WithChampionshipIncrement(w float64) ParamOption {
	return func(p *Params) {
		if w >= 0 {
			p.ChampionshipIncrement = w
		}
	}
}

// WithMassEliminationLosers sets the mass-elimination threshold.
func WithMassEliminationLosers(n int) ParamOption {
	return func(p *Params) {
		if n > 0 {
			p.MassEliminationLosers = n
		}
	}
}

// WithEventModifiers replaces the tier table from text-keyed config.
// Keys that do not name a known tier are ignored.
func WithEventModifiers(mods map[string]float64) ParamOption {
	return func(p *Params) {
		if len(mods) == 0 {
			return
		}
		p.TierFactors = make(map[model.EventTier]float64, len(mods))
		for name, f := range mods {
			if tier := model.ParseEventTier(name); tier != model.TierOther && f > 0 {
				p.TierFactors[tier] = f
			}
		}
	}
}

// WithResolutionPenalties replaces the ending penalty table from
// text-keyed config. Keys that do not name a known ending are ignored.
func WithResolutionPenalties(penalties map[string]float64) ParamOption {
	return func(p *Params) {
		if len(penalties) == 0 {
			return
		}
		p.EndingPenalties = make(map[model.Ending]float64, len(penalties))
		for name, f := range penalties {
			if ending := model.ParseEnding(name); ending != model.EndingOther && f > 0 {
				p.EndingPenalties[ending] = f
			}
		}
	}
}

func (p Params) tierFactor(t model.EventTier) float64 {
	if f, ok := p.TierFactors[t]; ok && f > 0 {
		return f
	}
	return 1
}

func (p Params) endingPenalty(e model.Ending) float64 {
	if f, ok := p.EndingPenalties[e]; ok && f > 0 {
		return f
	}
	return 1
}
