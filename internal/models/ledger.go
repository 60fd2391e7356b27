package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateDecisionEvent is one realized policy decision. Ledger entries are
// append-only ground truth.
type RateDecisionEvent struct {
	Date        time.Time       `json:"date" validate:"required"`
	Decision    Decision        `json:"decision" validate:"oneof=hike hold cut"`
	MagnitudeBP int64           `json:"magnitude_bp"`
	Rate        decimal.Decimal `json:"rate"`
	IngestedAt  time.Time       `json:"ingested_at"`
}

// Validate checks the decision against the sign of its magnitude.
func (e *RateDecisionEvent) Validate() error {
	id := e.Date.Format(time.DateOnly)
	if err := validateStruct("ledger", id, e); err != nil {
		return err
	}
	switch {
	case e.Decision == Hold && e.MagnitudeBP != 0:
		return NewError(KindInputValidation, "ledger", id, "hold with non-zero magnitude %d", e.MagnitudeBP)
	case e.Decision == Hike && e.MagnitudeBP <= 0:
		return NewError(KindInputValidation, "ledger", id, "hike requires a positive magnitude")
	case e.Decision == Cut && e.MagnitudeBP >= 0:
		return NewError(KindInputValidation, "ledger", id, "cut requires a negative magnitude")
	}
	return nil
}

// ExclusionEntry removes a ledger date from evaluation. The reason is recorded
// as supplied; the engine does not interpret it.
type ExclusionEntry struct {
	Date    time.Time `json:"date" validate:"required"`
	Reason  string    `json:"reason"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// DateKey normalizes a timestamp to its calendar day in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
