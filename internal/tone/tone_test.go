package tone

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/models"
)

var event = time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time { return event.AddDate(0, 0, offset) }

func params(a, b, g float64) models.ModelParameters {
	p := models.DefaultParameters()
	p.Weights = models.Weights{Alpha: a, Beta: b, Gamma: g}
	p.Version = p.ComputeVersion()
	return p
}

func ptr(v float64) *float64 { return &v }

func TestCombinerTextOnlyEqualsRawTone(t *testing.T) {
	c, err := NewCombiner(params(1, 0, 0))
	require.NoError(t, err)

	for _, raw := range []float64{-0.6, 0, 0.1234567, 0.7, 1} {
		idx, err := c.Combine(models.DocumentToneScore{DocumentID: "d", Tone: raw}, event, ptr(0.9), ptr(-0.4), event)
		require.NoError(t, err)
		assert.Equal(t, raw, idx.Value)
		assert.False(t, idx.PartialComposite)
	}
}

func TestCombinerRejectsBadWeights(t *testing.T) {
	for _, w := range [][3]float64{{0.5, 0.5, 0.5}, {0.4, 0.3, 0.2}, {1.5, -0.5, 0}} {
		_, err := NewCombiner(params(w[0], w[1], w[2]))
		assert.ErrorIs(t, err, models.ErrInvalidWeight, "%v", w)
	}
}

func TestCombinerFullComposite(t *testing.T) {
	c, err := NewCombiner(params(0.5, 0.3, 0.2))
	require.NoError(t, err)

	idx, err := c.Combine(models.DocumentToneScore{DocumentID: "d", Tone: 0.4, HawkishCount: 3, DovishCount: 1}, event, ptr(0.2), ptr(-0.5), event)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*0.4+0.3*0.2+0.2*-0.5, idx.Value, 1e-12)
	assert.Equal(t, "w:0.5/0.3/0.2", idx.WeightSetID)
	assert.Equal(t, 3, idx.HawkishCount)
	assert.NotEmpty(t, idx.ParameterVersion)
}

func TestCombinerRenormalizesMissingSignal(t *testing.T) {
	c, err := NewCombiner(params(0.5, 0.3, 0.2))
	require.NoError(t, err)

	idx, err := c.Combine(models.DocumentToneScore{DocumentID: "d", Tone: 0.4}, event, nil, ptr(-0.5), event)
	require.NoError(t, err)
	assert.True(t, idx.PartialComposite)
	assert.Nil(t, idx.MarketReaction)
	assert.InDelta(t, 1.0, idx.AppliedWeights.Sum(), 1e-12)
	assert.Zero(t, idx.AppliedWeights.Beta)
	assert.InDelta(t, (0.5*0.4+0.2*-0.5)/0.7, idx.Value, 1e-12)
	assert.Equal(t, models.Weights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2}, idx.Weights, "configured weights are recorded unchanged")

	idx, err = c.Combine(models.DocumentToneScore{DocumentID: "d", Tone: 0.4}, event, nil, nil, event)
	require.NoError(t, err)
	assert.True(t, idx.PartialComposite)
	assert.Equal(t, 0.4, idx.Value)
}

func TestCombinerNoWeightedSignal(t *testing.T) {
	c, err := NewCombiner(params(0, 0.6, 0.4))
	require.NoError(t, err)
	_, err = c.Combine(models.DocumentToneScore{DocumentID: "d9", Tone: 0.4}, event, nil, nil, event)
	assert.ErrorIs(t, err, models.ErrMissingInput)
	assert.Contains(t, err.Error(), "d9")
}

func TestCombinerIdempotent(t *testing.T) {
	c, err := NewCombiner(params(0.5, 0.3, 0.2))
	require.NoError(t, err)
	score := models.DocumentToneScore{DocumentID: "d", Tone: 0.31, HawkishCount: 4, DovishCount: 2}
	a, err := c.Combine(score, event, ptr(0.12), nil, event)
	require.NoError(t, err)
	b, err := c.Combine(score, event, ptr(0.12), nil, event)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWindowBounds(t *testing.T) {
	start, end := DefaultMarketWindow.Bounds(event.Add(15 * time.Hour))
	assert.Equal(t, day(-5), start)
	assert.Equal(t, day(10), end)
}

func TestNewsSentimentWindow(t *testing.T) {
	feed := NewFeed(nil, []models.Signal{
		{Date: day(-6), Magnitude: 1},
		{Date: day(-5), Magnitude: 0.4},
		{Date: day(0), Magnitude: -0.2},
		{Date: day(5), Magnitude: 0.1},
		{Date: day(6), Magnitude: -1},
	})
	v, ok := NewsSentiment(feed, event, DefaultNewsWindow)
	require.True(t, ok)
	assert.InDelta(t, 0.1, v, 1e-12)

	_, ok = NewsSentiment(NewFeed(nil, nil), event, DefaultNewsWindow)
	assert.False(t, ok)
}

func TestMarketReaction(t *testing.T) {
	obs := []models.Observation{
		{Series: "ktb_3y", Date: day(-7), Value: 3.0},
		{Series: "ktb_3y", Date: day(3), Value: 3.2},
		{Series: "ktb_3y", Date: day(10), Value: 3.3},
		{Series: "ktb_3y", Date: day(11), Value: 9.9},
		{Series: "kospi", Date: day(-5), Value: 2500},
		{Series: "kospi", Date: day(8), Value: 2250},
	}
	m := MarketModel{
		Indicators: []Indicator{{Series: "ktb_3y", Weight: 0.35}, {Series: "kospi", Weight: 0.20, Invert: true}, {Series: "usd_krw", Weight: 0.25}},
		Window:     DefaultMarketWindow,
		Scale:      10,
	}
	v, ok := m.Reaction(NewFeed(obs, nil), event)
	require.True(t, ok)
	want := math.Tanh(10 * (0.35*0.1 + 0.20*0.1) / 0.55)
	assert.InDelta(t, want, v, 1e-12)

	_, ok = m.Reaction(NewFeed(obs[:1], nil), event)
	assert.False(t, ok, "a single point has no change")
}

func TestFeedUntil(t *testing.T) {
	feed := NewFeed(
		[]models.Observation{{Series: "cpi", Date: day(1), Value: 2}, {Series: "cpi", Date: day(-1), Value: 1}, {Series: "cpi", Date: day(0).Add(20 * time.Hour), Value: 3}},
		[]models.Signal{{Date: day(2), Magnitude: 0.5}, {Date: day(0), Magnitude: 0.1}},
	)
	cut := feed.Until(event)
	require.Len(t, cut.Series("cpi"), 2)
	assert.Equal(t, 1.0, cut.Series("cpi")[0].Value)
	assert.Equal(t, 3.0, cut.Series("cpi")[1].Value)
	require.Len(t, cut.News(), 1)
	assert.Len(t, feed.Series("cpi"), 3, "Until does not modify the source feed")
}

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	l, err := lexicon.New([]models.LexiconEntry{
		{Term: "tightening", Polarity: models.Hawkish, Weight: 1, Domain: models.DomainPolicy},
		{Term: "easing", Polarity: models.Dovish, Weight: 1, Domain: models.DomainPolicy},
	}, lexicon.WordPrefix)
	require.NoError(t, err)
	return l
}

func TestScoreBatchPartialFailure(t *testing.T) {
	c, err := NewCombiner(params(0.5, 0.3, 0.2))
	require.NoError(t, err)
	s := NewScorer(testLexicon(t), c, Config{Market: DefaultMarketModel(), NewsWindow: DefaultNewsWindow, Workers: 4})

	var docs []models.Document
	for i := 0; i < 20; i++ {
		docs = append(docs, models.Document{
			ID: fmt.Sprintf("doc-%02d", i), EventDate: day(i * 30), Category: models.CategoryMinutes,
			Text: "tightening tightening easing",
		})
	}
	docs[7].Category = "rumour"
	docs[13].Text = ""

	feed := NewFeed(nil, []models.Signal{{Date: day(0), Magnitude: 0.5}})
	res, err := s.ScoreBatch(context.Background(), docs, feed, event)
	require.NoError(t, err)
	assert.Len(t, res.Items, 18)
	assert.Equal(t, []string{"doc-07", "doc-13"}, models.FailedIDs(res.Failures))
	assert.Equal(t, "doc-00", res.Items[0].Index.DocumentID)
	assert.Equal(t, "doc-19", res.Items[17].Index.DocumentID)

	for _, item := range res.Items {
		one, err := s.ScoreOne(&models.Document{ID: item.Index.DocumentID, EventDate: item.Index.EventDate, Category: models.CategoryMinutes, Text: "tightening tightening easing"}, feed, event)
		require.NoError(t, err)
		assert.Equal(t, one, item, "parallel scoring must equal sequential scoring")
	}
	assert.NotNil(t, res.Items[0].Index.NewsSentiment)
	assert.Nil(t, res.Items[1].Index.NewsSentiment)
}

func TestScoreBatchCancelled(t *testing.T) {
	c, err := NewCombiner(params(1, 0, 0))
	require.NoError(t, err)
	s := NewScorer(testLexicon(t), c, Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ScoreBatch(ctx, []models.Document{{ID: "a", EventDate: event, Category: models.CategoryMinutes, Text: "easing"}}, NewFeed(nil, nil), event)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoringSettingsChangeVersion(t *testing.T) {
	obs := []models.Observation{
		{Series: "ktb_3y", Date: day(-6), Value: 3.0},
		{Series: "ktb_3y", Date: day(-1), Value: 3.1},
		{Series: "ktb_3y", Date: day(1), Value: 3.15},
		{Series: "ktb_3y", Date: day(9), Value: 3.5},
	}
	feed := NewFeed(obs, []models.Signal{{Date: day(0), Magnitude: 0.4}})
	doc := models.Document{ID: "d", EventDate: event, Category: models.CategoryMinutes, Text: "tightening tightening easing"}

	score := func(p models.ModelParameters) Scored {
		c, err := NewCombiner(p)
		require.NoError(t, err)
		out, err := NewScorer(testLexicon(t), c, ConfigFor(p.Scoring, 1)).ScoreOne(&doc, feed, event)
		require.NoError(t, err)
		return out
	}

	wide := models.DefaultParameters()
	narrow := models.DefaultParameters()
	narrow.Scoring.MarketWindow = models.Window{Before: 1, After: 1}
	narrow.Version = narrow.ComputeVersion()

	a, b := score(wide), score(narrow)
	assert.NotEqual(t, a.Index.Value, b.Index.Value)
	assert.Equal(t, a.Index.WeightSetID, b.Index.WeightSetID)
	assert.NotEqual(t, a.Index.ParameterVersion, b.Index.ParameterVersion,
		"different market windows must not share a parameter version")
	assert.Equal(t, testLexicon(t).Version(), a.Index.LexiconVersion)
	assert.Equal(t, a.Score.LexiconVersion, a.Index.LexiconVersion)
}
