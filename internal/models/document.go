// Package models defines the engine's records: documents, lexicon entries,
// tone artifacts, the rate-decision ledger, parameter sets and backtest runs.
package models

import (
	"time"
)

// DocumentCategory is the source type of a policy document.
type DocumentCategory string

const (
	CategoryMinutes           DocumentCategory = "minutes"
	CategoryDecisionStatement DocumentCategory = "decision_statement"
	CategoryPressConference   DocumentCategory = "press_conference"
)

// Document is a central-bank policy document. Immutable once ingested.
type Document struct {
	ID        string           `json:"id" validate:"required"`
	EventDate time.Time        `json:"event_date" validate:"required"`
	Category  DocumentCategory `json:"category" validate:"oneof=minutes decision_statement press_conference"`
	Text      string           `json:"text" validate:"required_without=Tokens"`
	Tokens    []string         `json:"tokens,omitempty"`
}

// Validate checks required document fields.
func (d *Document) Validate() error {
	return validateStruct("document", d.ID, d)
}

// Polarity is the stance a lexicon term signals.
type Polarity string

const (
	Hawkish Polarity = "hawkish"
	Dovish  Polarity = "dovish"
)

// Domain tags the economic theme of a lexicon term.
type Domain string

const (
	DomainPolicy             Domain = "policy"
	DomainInflation          Domain = "inflation"
	DomainGrowth             Domain = "growth"
	DomainFinancialStability Domain = "financial_stability"
	DomainRisk               Domain = "risk"
	DomainLiquidity          Domain = "liquidity"
	DomainExternal           Domain = "external"
	DomainDemand             Domain = "demand"
)

// LexiconEntry is one weighted sentiment term.
type LexiconEntry struct {
	Term     string   `json:"term" yaml:"term" validate:"required"`
	Polarity Polarity `json:"polarity" yaml:"polarity" validate:"oneof=hawkish dovish"`
	Weight   float64  `json:"weight" yaml:"weight" validate:"gt=0"`
	Domain   Domain   `json:"domain" yaml:"domain" validate:"oneof=policy inflation growth financial_stability risk liquidity external demand"`
}

// Validate checks the entry's fields.
func (e *LexiconEntry) Validate() error {
	return validateStruct("lexicon", e.Term, e)
}

// Observation is one raw point of a macro or market series.
type Observation struct {
	Series string    `json:"series"`
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
}

// Signal is a normalized reaction magnitude in [-1, 1] on a date.
type Signal struct {
	Date      time.Time `json:"date"`
	Source    string    `json:"source,omitempty"`
	Magnitude float64   `json:"magnitude" validate:"gte=-1,lte=1"`
}
