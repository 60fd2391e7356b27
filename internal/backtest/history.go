// Package backtest replays the rate-decision ledger walk-forward. Every
// prediction is computed from an as-of view of the history, so documents,
// external series and labels dated after the decision point cannot reach it.
package backtest

import (
	"sort"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/tone"
)

// History is the full, immutable input of a replay.
type History struct {
	docs       []models.Document
	ledger     []models.RateDecisionEvent
	feed       tone.Feed
	exclusions map[string]models.ExclusionEntry
}

// NewHistory copies and orders its inputs by date.
func NewHistory(docs []models.Document, obs []models.Observation, news []models.Signal,
	ledger []models.RateDecisionEvent, exclusions []models.ExclusionEntry) *History {
	h := &History{
		docs:       append([]models.Document(nil), docs...),
		ledger:     append([]models.RateDecisionEvent(nil), ledger...),
		feed:       tone.NewFeed(obs, news),
		exclusions: make(map[string]models.ExclusionEntry, len(exclusions)),
	}
	sort.SliceStable(h.docs, func(i, j int) bool {
		if h.docs[i].EventDate.Equal(h.docs[j].EventDate) {
			return h.docs[i].ID < h.docs[j].ID
		}
		return h.docs[i].EventDate.Before(h.docs[j].EventDate)
	})
	sort.SliceStable(h.ledger, func(i, j int) bool { return h.ledger[i].Date.Before(h.ledger[j].Date) })
	for _, e := range exclusions {
		h.exclusions[models.DateKey(e.Date)] = e
	}
	return h
}

// Excluded reports whether a ledger date is on the exclusion list.
func (h *History) Excluded(t time.Time) bool {
	_, ok := h.exclusions[models.DateKey(t)]
	return ok
}

// Events returns ledger events with start <= date <= end, by calendar day.
func (h *History) Events(start, end time.Time) []models.RateDecisionEvent {
	lo, hi := models.DateKey(start), models.DateKey(end)
	var out []models.RateDecisionEvent
	for _, e := range h.ledger {
		if k := models.DateKey(e.Date); k >= lo && k <= hi {
			out = append(out, e)
		}
	}
	return out
}

// AsOf returns the view of the history knowable on the day of t.
func (h *History) AsOf(t time.Time) AsOf {
	return AsOf{h: h, t: t, key: models.DateKey(t)}
}

// AsOf is a causal view: documents and series up to and including the day of
// t, and ledger labels strictly before it.
type AsOf struct {
	h   *History
	t   time.Time
	key string
}

func (v AsOf) Time() time.Time { return v.t }

// Documents returns the documents dated on or before t.
func (v AsOf) Documents() []models.Document {
	n := sort.Search(len(v.h.docs), func(i int) bool { return models.DateKey(v.h.docs[i].EventDate) > v.key })
	return v.h.docs[:n:n]
}

// LatestDocument is the most recent document on or before t.
func (v AsOf) LatestDocument() (*models.Document, bool) {
	docs := v.Documents()
	if len(docs) == 0 {
		return nil, false
	}
	d := docs[len(docs)-1]
	return &d, true
}

// Labels returns non-excluded ledger events dated strictly before t.
func (v AsOf) Labels() []models.RateDecisionEvent {
	var out []models.RateDecisionEvent
	for _, e := range v.h.ledger {
		if models.DateKey(e.Date) >= v.key {
			break
		}
		if !v.h.Excluded(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// Feed returns external series truncated to t.
func (v AsOf) Feed() tone.Feed {
	return v.h.feed.Until(v.t)
}
