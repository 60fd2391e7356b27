package tone

import (
	"math"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// Indicator is one market series contributing to the reaction signal.
type Indicator = models.Indicator

// DefaultIndicators are the won, 3y treasury, KOSPI and term-spread weights.
func DefaultIndicators() []Indicator { return models.DefaultIndicators() }

// MarketModel turns indicator moves around an event into a bounded reaction.
type MarketModel struct {
	Indicators []Indicator
	Window     Window
	Scale      float64
}

// DefaultMarketModel uses the default indicators, window and tanh scale 10.
func DefaultMarketModel() MarketModel {
	return MarketModel{Indicators: DefaultIndicators(), Window: DefaultMarketWindow, Scale: 10}
}

// Reaction computes tanh(Scale * weighted percent change) over the window.
// Indicators without a usable base or end point are skipped and the others
// reweighted. ok is false when no indicator is usable.
func (m MarketModel) Reaction(feed Feed, event time.Time) (value float64, ok bool) {
	start, end := m.Window.Bounds(event)
	var sum, wsum float64
	for _, ind := range m.Indicators {
		pct, usable := percentChange(feed.Series(ind.Series), start, end)
		if !usable || ind.Weight <= 0 {
			continue
		}
		if ind.Invert {
			pct = -pct
		}
		sum += ind.Weight * pct
		wsum += ind.Weight
	}
	if wsum == 0 {
		return 0, false
	}
	return math.Tanh(m.Scale * sum / wsum), true
}

// percentChange compares the last value on or before start (or the first value
// inside the window when nothing precedes it) with the last value inside the
// window.
func percentChange(obs []models.Observation, start, end time.Time) (float64, bool) {
	baseIdx, endIdx := -1, -1
	for i, o := range obs {
		d := truncateDay(o.Date)
		if !d.After(start) {
			baseIdx = i
		}
		if inRange(o.Date, start, end) {
			if baseIdx < 0 {
				baseIdx = i
			}
			endIdx = i
		}
	}
	if baseIdx < 0 || endIdx <= baseIdx {
		return 0, false
	}
	base := obs[baseIdx].Value
	if base == 0 || math.IsNaN(base) || math.IsNaN(obs[endIdx].Value) {
		return 0, false
	}
	return (obs[endIdx].Value - base) / math.Abs(base), true
}

// NewsSentiment averages news magnitudes inside the window.
func NewsSentiment(feed Feed, event time.Time, w Window) (float64, bool) {
	start, end := w.Bounds(event)
	var sum float64
	var n int
	for _, s := range feed.News() {
		if inRange(s.Date, start, end) {
			sum += s.Magnitude
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
