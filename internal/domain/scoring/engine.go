// Package scoring decides whether a matched transaction earns points and
// how many.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/okian/fanspend/internal/domain/model"
)

// Reason explains why a transaction was left out of the scored output.
type Reason string

const (
	Included   Reason = ""
	NoMatch    Reason = "no_match"
	Ineligible Reason = "ineligible"
	ZeroPoints Reason = "zero_points"
)

// Engine scores transactions with a configurable Formula. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	formula Formula
}

// NewEngine creates an engine using the Simple formula unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{formula: Simple{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Score scores tx with the Simple formula. See Engine.Score.
func Score(tx model.Transaction, m model.MatchResult, p model.UserProfile) (model.ScoredTransaction, bool) {
	return defaultEngine.Score(tx, m, p)
}

// Formula returns the active formula.
func (e *Engine) Formula() Formula { return e.formula }

// Score returns the scored transaction and true, or false when tx is
// excluded. Exclusion is never an error.
func (e *Engine) Score(tx model.Transaction, m model.MatchResult, p model.UserProfile) (model.ScoredTransaction, bool) {
	st, reason := e.Evaluate(tx, m, p)
	return st, reason == Included
}

// Evaluate is Score with the exclusion reason.
func (e *Engine) Evaluate(tx model.Transaction, m model.MatchResult, p model.UserProfile) (model.ScoredTransaction, Reason) {
	if !m.Matched() {
		return model.ScoredTransaction{}, NoMatch
	}
	status, ok := p.Status(m.League)
	if !ok || !status.Eligible() {
		return model.ScoredTransaction{}, Ineligible
	}

	points, multiplier := e.formula.Apply(normalizeAmount(tx.Amount), status, m.League)
	if points <= 0 {
		return model.ScoredTransaction{}, ZeroPoints
	}

	return model.ScoredTransaction{
		Transaction:    tx,
		MatchedSponsor: m.Sponsor,
		League:         m.League,
		FanStatus:      status,
		Points:         points,
		Multiplier:     multiplier,
		Confidence:     m.Confidence,
	}, Included
}

// normalizeAmount returns |amount|. Non-finite amounts become 0.
func normalizeAmount(amount float64) decimal.Decimal {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(amount).Abs()
}
