package models

import "time"

// Method identifies which strategy produced a prediction.
type Method string

const (
	MethodClassifier Method = "classifier"
	MethodHeuristic  Method = "heuristic"
)

// Features is the classifier input vector.
type Features struct {
	AdjustedTone   float64 `json:"adjusted_tone"`
	HawkishCount   float64 `json:"hawkish_count"`
	DovishCount    float64 `json:"dovish_count"`
	MarketReaction float64 `json:"market_reaction"`
}

// Vector returns the features in a fixed order.
func (f Features) Vector() []float64 {
	return []float64{f.AdjustedTone, f.HawkishCount, f.DovishCount, f.MarketReaction}
}

// FeaturesFrom derives features from an adjusted tone record. An absent market
// reaction contributes zero.
func FeaturesFrom(idx AdjustedToneIndex) Features {
	f := Features{
		AdjustedTone: idx.Value,
		HawkishCount: float64(idx.HawkishCount),
		DovishCount:  float64(idx.DovishCount),
	}
	if idx.MarketReaction != nil {
		f.MarketReaction = *idx.MarketReaction
	}
	return f
}

// Prediction is a strategy output before it is tied to a document.
type Prediction struct {
	Probabilities Probabilities `json:"probabilities"`
	Predicted     Decision      `json:"predicted"`
	Method        Method        `json:"method"`
}

// PredictionResult is a persisted prediction for one document.
type PredictionResult struct {
	DocumentID       string        `json:"document_id"`
	EventDate        time.Time     `json:"event_date"`
	ParameterVersion string        `json:"parameter_version"`
	LexiconVersion   string        `json:"lexicon_version"`
	Probabilities    Probabilities `json:"probabilities"`
	Predicted        Decision      `json:"predicted"`
	Method           Method        `json:"method"`
	Features         Features      `json:"features"`
}
