package tone

import (
	"time"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/stats"
)

// Combiner applies one validated weight set. It holds no mutable state and is
// safe for concurrent use.
type Combiner struct {
	weights          models.Weights
	parameterVersion string
}

// NewCombiner rejects weight sets that are negative or do not sum to one.
func NewCombiner(params models.ModelParameters) (*Combiner, error) {
	if err := models.ValidateWeights("tone", params.Version, params.Weights); err != nil {
		return nil, err
	}
	return &Combiner{weights: params.Weights, parameterVersion: params.Version}, nil
}

// Weights returns the configured weights.
func (c *Combiner) Weights() models.Weights { return c.weights }

// Combine merges a document score with optional market and news signals. A
// missing signal with non-zero weight is dropped and the remaining weights are
// rescaled to sum to one; the result is then marked partial.
func (c *Combiner) Combine(score models.DocumentToneScore, eventDate time.Time, market, news *float64, computedAt time.Time) (models.AdjustedToneIndex, error) {
	w := c.weights
	applied := models.Weights{Alpha: w.Alpha}
	partial := false
	if market != nil {
		applied.Beta = w.Beta
	} else if w.Beta > 0 {
		partial = true
	}
	if news != nil {
		applied.Gamma = w.Gamma
	} else if w.Gamma > 0 {
		partial = true
	}

	total := applied.Sum()
	if total == 0 {
		return models.AdjustedToneIndex{}, models.NewError(models.KindMissingInput, "tone", score.DocumentID,
			"no weighted signal available under %s", w.ID())
	}
	if partial {
		applied = models.Weights{Alpha: applied.Alpha / total, Beta: applied.Beta / total, Gamma: applied.Gamma / total}
	}

	value := applied.Alpha * score.Tone
	if market != nil {
		value += applied.Beta * *market
	}
	if news != nil {
		value += applied.Gamma * *news
	}

	return models.AdjustedToneIndex{
		DocumentID:       score.DocumentID,
		EventDate:        eventDate,
		WeightSetID:      w.ID(),
		ParameterVersion: c.parameterVersion,
		LexiconVersion:   score.LexiconVersion,
		Value:            stats.Clip(value, -1, 1),
		Weights:          w,
		AppliedWeights:   applied,
		TextTone:         score.Tone,
		MarketReaction:   copyPtr(market),
		NewsSentiment:    copyPtr(news),
		PartialComposite: partial,
		HawkishCount:     score.HawkishCount,
		DovishCount:      score.DovishCount,
		ComputedAt:       computedAt,
	}, nil
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
