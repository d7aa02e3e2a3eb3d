package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/okian/fanspend/internal/domain/model"
)

// Formula turns a non-negative amount into points. It returns the rounded
// points and the multiplier that was applied, for display.
type Formula interface {
	Name() string
	Apply(amount decimal.Decimal, status model.FanStatus, league model.League) (points int64, multiplier float64)
}

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// round rounds half away from zero. Values that do not fit in int64 yield 0
// so the transaction falls out through the zero-points path.
func round(d decimal.Decimal) int64 {
	r := d.Round(0)
	if r.GreaterThan(maxPoints) {
		return 0
	}
	return r.IntPart()
}

// Simple awards round(amount * fanMultiplier).
type Simple struct{}

func (Simple) Name() string { return "simple" }

func (Simple) Apply(amount decimal.Decimal, status model.FanStatus, _ model.League) (int64, float64) {
	m := status.Multiplier()
	return round(amount.Mul(decimal.NewFromInt(m))), float64(m)
}

// PerDollar awards round(amount * pointsPerDollar * fanMultiplier *
// leagueMultiplier). Leagues without a configured multiplier use 1. The
// reported multiplier is fan * league.
type PerDollar struct {
	pointsPerDollar decimal.Decimal
	leagues         map[model.League]decimal.Decimal
}

// NewPerDollar builds a PerDollar formula. League keys are matched
// case-insensitively; unknown leagues are ignored.
func NewPerDollar(pointsPerDollar float64, leagueMultipliers map[string]float64) PerDollar {
	f := PerDollar{
		pointsPerDollar: decimal.NewFromFloat(pointsPerDollar),
		leagues:         make(map[model.League]decimal.Decimal, len(leagueMultipliers)),
	}
	for name, m := range leagueMultipliers {
		if l, ok := model.ParseLeague(name); ok {
			f.leagues[l] = decimal.NewFromFloat(m)
		}
	}
	return f
}

func (PerDollar) Name() string { return "per_dollar" }

func (f PerDollar) Apply(amount decimal.Decimal, status model.FanStatus, league model.League) (int64, float64) {
	lm, ok := f.leagues[league]
	if !ok {
		lm = decimal.NewFromInt(1)
	}
	combined := decimal.NewFromInt(status.Multiplier()).Mul(lm)
	points := round(amount.Mul(f.pointsPerDollar).Mul(combined))
	return points, combined.InexactFloat64()
}
