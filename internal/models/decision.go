package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decision is a policy-rate decision class.
type Decision string

const (
	Hike Decision = "hike"
	Hold Decision = "hold"
	Cut  Decision = "cut"
)

// Decisions lists the classes in the fixed probability/matrix order.
var Decisions = [3]Decision{Hike, Hold, Cut}

// Index returns the position of d in Decisions, or -1.
func (d Decision) Index() int {
	switch d {
	case Hike:
		return 0
	case Hold:
		return 1
	case Cut:
		return 2
	}
	return -1
}

// Sign maps hike/hold/cut to +1/0/-1.
func (d Decision) Sign() int {
	switch d {
	case Hike:
		return 1
	case Cut:
		return -1
	}
	return 0
}

// ParseDecision accepts the canonical lowercase names.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case Hike, Hold, Cut:
		return Decision(s), nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// DecisionFromRates derives the decision and signed basis-point change from two
// consecutive policy-rate levels in percent.
func DecisionFromRates(prev, cur decimal.Decimal) (Decision, int64) {
	bp := cur.Sub(prev).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	switch {
	case bp > 0:
		return Hike, bp
	case bp < 0:
		return Cut, bp
	}
	return Hold, 0
}

// Probabilities holds class probabilities in hike/hold/cut order.
type Probabilities struct {
	Hike float64 `json:"hike"`
	Hold float64 `json:"hold"`
	Cut  float64 `json:"cut"`
}

// Slice returns the probabilities in Decisions order.
func (p Probabilities) Slice() [3]float64 {
	return [3]float64{p.Hike, p.Hold, p.Cut}
}

// ProbabilitiesFrom builds Probabilities from a Decisions-ordered vector.
func ProbabilitiesFrom(v [3]float64) Probabilities {
	return Probabilities{Hike: v[0], Hold: v[1], Cut: v[2]}
}

// Argmax picks the most probable class. Exact ties involving hold resolve to
// hold; a hike/cut tie without hold also resolves to hold.
func (p Probabilities) Argmax() Decision {
	switch {
	case p.Hold >= p.Hike && p.Hold >= p.Cut:
		return Hold
	case p.Hike > p.Cut:
		return Hike
	case p.Cut > p.Hike:
		return Cut
	}
	return Hold
}
