package models

import (
	"strconv"
	"time"
)

// TermMatch counts a matched lexicon term within a document.
type TermMatch struct {
	Term     string   `json:"term"`
	Polarity Polarity `json:"polarity"`
	Domain   Domain   `json:"domain"`
	Count    int      `json:"count"`
	Weight   float64  `json:"weight"`
}

// DomainScore is a per-domain subtotal computed with the document formula.
type DomainScore struct {
	HawkishWeight float64 `json:"hawkish_weight"`
	DovishWeight  float64 `json:"dovish_weight"`
	Tone          float64 `json:"tone"`
}

// DocumentToneScore is the lexicon score of a single document.
type DocumentToneScore struct {
	DocumentID     string                 `json:"document_id"`
	LexiconVersion string                 `json:"lexicon_version"`
	HawkishCount   int                    `json:"hawkish_count"`
	DovishCount    int                    `json:"dovish_count"`
	HawkishWeight  float64                `json:"hawkish_weight"`
	DovishWeight   float64                `json:"dovish_weight"`
	Tone           float64                `json:"tone"`
	Domains        map[Domain]DomainScore `json:"domains"`
	Matches        []TermMatch            `json:"matches"`
}

// Weights are the combiner weights for text, market and news.
type Weights struct {
	Alpha float64 `json:"alpha" mapstructure:"alpha"`
	Beta  float64 `json:"beta" mapstructure:"beta"`
	Gamma float64 `json:"gamma" mapstructure:"gamma"`
}

// ID is the weight-set identity used to address AdjustedToneIndex versions.
func (w Weights) ID() string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	return "w:" + f(w.Alpha) + "/" + f(w.Beta) + "/" + f(w.Gamma)
}

// Sum returns alpha+beta+gamma.
func (w Weights) Sum() float64 {
	return w.Alpha + w.Beta + w.Gamma
}

// AdjustedToneIndex is the composite tone of one document under one parameter
// set and lexicon version.
type AdjustedToneIndex struct {
	DocumentID       string    `json:"document_id"`
	EventDate        time.Time `json:"event_date"`
	WeightSetID      string    `json:"weight_set_id"`
	ParameterVersion string    `json:"parameter_version"`
	LexiconVersion   string    `json:"lexicon_version"`
	Value            float64   `json:"value"`
	Weights          Weights   `json:"weights"`
	AppliedWeights   Weights   `json:"applied_weights"`
	TextTone         float64   `json:"text_tone"`
	MarketReaction   *float64  `json:"market_reaction,omitempty"`
	NewsSentiment    *float64  `json:"news_sentiment,omitempty"`
	PartialComposite bool      `json:"partial_composite"`
	HawkishCount     int       `json:"hawkish_count"`
	DovishCount      int       `json:"dovish_count"`
	ComputedAt       time.Time `json:"computed_at"`
}
