package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"
)

// WeightTolerance bounds |alpha+beta+gamma-1|.
const WeightTolerance = 1e-6

// TaylorParams are the structural-rule coefficients.
type TaylorParams struct {
	RStar   float64 `json:"r_star" mapstructure:"r_star"`
	PiStar  float64 `json:"pi_star" mapstructure:"pi_star"`
	AlphaPi float64 `json:"alpha_pi" mapstructure:"alpha_pi"`
	AlphaY  float64 `json:"alpha_y" mapstructure:"alpha_y"`
	Gamma   float64 `json:"gamma" mapstructure:"gamma"`
	Rho     float64 `json:"rho" mapstructure:"rho" validate:"gte=0,lt=1"`
	Delta   float64 `json:"delta" mapstructure:"delta"`
}

// ClassifierParams select and tune the decision strategy.
type ClassifierParams struct {
	Method       string  `json:"method" mapstructure:"method" validate:"oneof=logistic heuristic"`
	Threshold    float64 `json:"threshold" mapstructure:"threshold" validate:"gt=0,lt=1"`
	LearningRate float64 `json:"learning_rate" mapstructure:"learning_rate" validate:"gt=0"`
	Iterations   int     `json:"iterations" mapstructure:"iterations" validate:"gt=0"`
	L2           float64 `json:"l2" mapstructure:"l2" validate:"gte=0"`
	MinPerClass  int     `json:"min_per_class" mapstructure:"min_per_class" validate:"gte=1"`
}

// Window is an alignment range in days around an event date.
type Window struct {
	Before int `json:"before" mapstructure:"before" validate:"gte=0"`
	After  int `json:"after" mapstructure:"after" validate:"gte=0"`
}

// Bounds returns the inclusive first and last day of the window.
func (w Window) Bounds(event time.Time) (time.Time, time.Time) {
	u := event.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -w.Before), day.AddDate(0, 0, w.After)
}

// Indicator is one market series contributing to the reaction signal.
// Invert flips the sign for series that fall when policy tightens.
type Indicator struct {
	Series string  `json:"series" mapstructure:"series" validate:"required"`
	Weight float64 `json:"weight" mapstructure:"weight" validate:"gt=0"`
	Invert bool    `json:"invert" mapstructure:"invert"`
}

// ScoringParams are the settings that shape the adjusted tone besides the
// combiner weights.
type ScoringParams struct {
	MarketWindow Window      `json:"market_window"`
	NewsWindow   Window      `json:"news_window"`
	MarketScale  float64     `json:"market_scale" validate:"gt=0"`
	Indicators   []Indicator `json:"indicators" validate:"min=1,dive"`
	MatchMode    string      `json:"match_mode" validate:"oneof=word_prefix substring"`
	Normalize    bool        `json:"normalize"`
}

// DefaultIndicators are the won, 3y treasury, KOSPI and term-spread weights.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Series: "usd_krw", Weight: 0.25},
		{Series: "ktb_3y", Weight: 0.35},
		{Series: "kospi", Weight: 0.20, Invert: true},
		{Series: "term_spread", Weight: 0.20},
	}
}

// DefaultScoring returns the reference alignment windows and market model.
func DefaultScoring() ScoringParams {
	return ScoringParams{
		MarketWindow: Window{Before: 5, After: 10},
		NewsWindow:   Window{Before: 5, After: 5},
		MarketScale:  10,
		Indicators:   DefaultIndicators(),
		MatchMode:    "word_prefix",
	}
}

// ModelParameters is a named, versioned parameter set. A version never
// changes meaning: any edit yields a new version.
type ModelParameters struct {
	Name       string           `json:"name" validate:"required"`
	Version    string           `json:"version"`
	Weights    Weights          `json:"weights"`
	Scoring    ScoringParams    `json:"scoring"`
	Taylor     TaylorParams     `json:"taylor"`
	Classifier ClassifierParams `json:"classifier"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DefaultParameters returns the reference parameter set.
func DefaultParameters() ModelParameters {
	p := ModelParameters{
		Name:    "default",
		Weights: Weights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2},
		Scoring: DefaultScoring(),
		Taylor: TaylorParams{
			RStar: 2.0, PiStar: 2.0, AlphaPi: 0.5, AlphaY: 0.5,
			Gamma: 0.3, Rho: 0.8, Delta: 0.5,
		},
		Classifier: ClassifierParams{
			Method: "logistic", Threshold: 0.2, LearningRate: 0.1,
			Iterations: 500, L2: 0.01, MinPerClass: 2,
		},
	}
	p.Version = p.ComputeVersion()
	return p
}

// ComputeVersion hashes the parameter content. Name and timestamps are labels
// and do not take part in the identity.
func (p ModelParameters) ComputeVersion() string {
	content := struct {
		Weights    Weights          `json:"weights"`
		Scoring    ScoringParams    `json:"scoring"`
		Taylor     TaylorParams     `json:"taylor"`
		Classifier ClassifierParams `json:"classifier"`
	}{p.Weights, p.Scoring, p.Taylor, p.Classifier}
	b, _ := json.Marshal(content)
	sum := sha256.Sum256(b)
	return "ps-" + hex.EncodeToString(sum[:6])
}

// Validate checks tags and the weight invariants. Weight violations are
// reported as invalid weight errors so they can be rejected at apply time.
func (p *ModelParameters) Validate() error {
	if err := ValidateWeights("parameters", p.Name, p.Weights); err != nil {
		return err
	}
	return validateStruct("parameters", p.Name, p)
}

// ValidateWeights enforces non-negative weights summing to one.
func ValidateWeights(component, recordID string, w Weights) error {
	for _, x := range []float64{w.Alpha, w.Beta, w.Gamma} {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return NewError(KindInvalidWeight, component, recordID,
				"weights must be finite and non-negative, got %s", w.ID())
		}
	}
	if math.Abs(w.Sum()-1) > WeightTolerance {
		return NewError(KindInvalidWeight, component, recordID,
			"weights must sum to 1, got %.6f (%s)", w.Sum(), w.ID())
	}
	return nil
}
