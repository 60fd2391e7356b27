// Package tone combines document lexicon scores with market and news signals
// into the adjusted tone index.
package tone

import (
	"sort"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// Window is an alignment range in days around an event date.
type Window = models.Window

// Default alignment windows.
var (
	DefaultMarketWindow = models.DefaultScoring().MarketWindow
	DefaultNewsWindow   = models.DefaultScoring().NewsWindow
)

// Feed is a read-only snapshot of external series. Observations are sorted by
// date within each series and news signals are sorted by date.
type Feed struct {
	observations map[string][]models.Observation
	news         []models.Signal
}

// NewFeed copies and sorts the inputs.
func NewFeed(obs []models.Observation, news []models.Signal) Feed {
	f := Feed{observations: make(map[string][]models.Observation)}
	for _, o := range obs {
		f.observations[o.Series] = append(f.observations[o.Series], o)
	}
	for k := range f.observations {
		s := f.observations[k]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	}
	f.news = append([]models.Signal(nil), news...)
	sort.SliceStable(f.news, func(i, j int) bool { return f.news[i].Date.Before(f.news[j].Date) })
	return f
}

// Series returns the observations of one series.
func (f Feed) Series(name string) []models.Observation {
	return f.observations[name]
}

// News returns the news signals.
func (f Feed) News() []models.Signal {
	return f.news
}

// Until returns the part of the feed dated on or before the day of t.
func (f Feed) Until(t time.Time) Feed {
	cut := truncateDay(t).AddDate(0, 0, 1)
	out := Feed{observations: make(map[string][]models.Observation, len(f.observations))}
	for k, s := range f.observations {
		n := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(cut) })
		out.observations[k] = s[:n:n]
	}
	n := sort.Search(len(f.news), func(i int) bool { return !f.news[i].Date.Before(cut) })
	out.news = f.news[:n:n]
	return out
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func inRange(t, start, end time.Time) bool {
	d := truncateDay(t)
	return !d.Before(start) && !d.After(end)
}
