package lexicon

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/models"
)

func englishLexicon(t *testing.T, mode MatchMode) *Lexicon {
	t.Helper()
	l, err := New([]models.LexiconEntry{
		{Term: "hike", Polarity: models.Hawkish, Weight: 2, Domain: models.DomainPolicy},
		{Term: "Rate Hike", Polarity: models.Hawkish, Weight: 3, Domain: models.DomainPolicy},
		{Term: "inflation pressure", Polarity: models.Hawkish, Weight: 1.5, Domain: models.DomainInflation},
		{Term: "cut", Polarity: models.Dovish, Weight: 2, Domain: models.DomainPolicy},
		{Term: "slowdown", Polarity: models.Dovish, Weight: 1, Domain: models.DomainGrowth},
	}, mode)
	require.NoError(t, err)
	return l
}

func TestScoreLongestTermFirst(t *testing.T) {
	l := englishLexicon(t, WordPrefix)

	res := l.Score(Tokenize("The RATE HIKE was followed by talk of a cut."))

	assert.Equal(t, 1, res.HawkishCount, "hike inside rate hike must not count twice")
	assert.Equal(t, 1, res.DovishCount)
	assert.InDelta(t, 3.0, res.HawkishWeight, 1e-12)
	assert.InDelta(t, 2.0, res.DovishWeight, 1e-12)
	assert.InDelta(t, 1.0/(5.0+Epsilon), res.Tone, 1e-12)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "Rate Hike", res.Matches[0].Term)
}

func TestScoreDomainSubtotals(t *testing.T) {
	l := englishLexicon(t, WordPrefix)

	res := l.Score(Tokenize("inflation pressure builds; slowdown risk; hike"))

	policy := res.Domains[models.DomainPolicy]
	assert.InDelta(t, 2.0, policy.HawkishWeight, 1e-12)
	assert.InDelta(t, 1.0, policy.Tone, 1e-6)

	growth := res.Domains[models.DomainGrowth]
	assert.InDelta(t, 1.0, growth.DovishWeight, 1e-12)
	assert.InDelta(t, -1.0, growth.Tone, 1e-6)

	_, ok := res.Domains[models.DomainRisk]
	assert.False(t, ok, "unmatched domains are omitted")
}

func TestScoreMatchModes(t *testing.T) {
	tokens := Tokenize("a shortcut to hikes")

	prefix := englishLexicon(t, WordPrefix).Score(tokens)
	assert.Equal(t, 0, prefix.DovishCount)
	assert.Equal(t, 1, prefix.HawkishCount, "prefix mode still matches inflected forms")

	sub := englishLexicon(t, Substring).Score(tokens)
	assert.Equal(t, 1, sub.DovishCount)
}

func TestScoreNoMatchesIsZero(t *testing.T) {
	l := englishLexicon(t, WordPrefix)
	for _, text := range []string{"", "nothing relevant here", "12345 ..."} {
		res := l.Score(Tokenize(text))
		assert.Zero(t, res.Tone, text)
		assert.Zero(t, res.HawkishCount+res.DovishCount, text)
		assert.Empty(t, res.Matches, text)
	}
}

func TestScoreToneBounded(t *testing.T) {
	l := englishLexicon(t, WordPrefix)
	vocab := []string{"hike", "rate", "cut", "slowdown", "inflation", "pressure", "the", "growth", "HIKE", "Cut"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		tokens := make([]string, rng.Intn(40))
		for j := range tokens {
			tokens[j] = vocab[rng.Intn(len(vocab))]
		}
		res := l.Score(tokens)
		require.GreaterOrEqual(t, res.Tone, -1.0)
		require.LessOrEqual(t, res.Tone, 1.0)
		if res.HawkishCount+res.DovishCount == 0 {
			require.Zero(t, res.Tone)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	l := englishLexicon(t, WordPrefix)
	tokens := Tokenize("rate hike, cut, slowdown, inflation pressure, hike")
	assert.Equal(t, l.Score(tokens), l.Score(tokens))
}

func TestDefaultLexicon(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)
	assert.Equal(t, Substring, l.Mode())
	assert.Greater(t, l.Len(), 100)

	res := l.Score(Tokenize("위원들은 추가인상 가능성과 가계부채 증가에 대한 우려를 표명하였다."))
	counts := map[string]int{}
	for _, m := range res.Matches {
		counts[m.Term] = m.Count
	}
	assert.Equal(t, 1, counts["추가인상"])
	assert.Zero(t, counts["인상"], "covered by the longer term")
	assert.Equal(t, 1, counts["가계부채"])
	assert.Equal(t, 1, counts["우려"])
	assert.Greater(t, res.Tone, 0.0)
}

func TestScoreDocumentUsesTokensWhenPresent(t *testing.T) {
	l := englishLexicon(t, WordPrefix)
	doc := &models.Document{
		ID: "d1", EventDate: mustDate("2024-01-11"), Category: models.CategoryMinutes,
		Text: "cut cut cut", Tokens: []string{"Rate", "hike"},
	}
	res, err := l.ScoreDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "d1", res.DocumentID)
	assert.Equal(t, 1, res.HawkishCount)
	assert.Equal(t, 0, res.DovishCount)

	_, err = l.ScoreDocument(&models.Document{ID: "bad"})
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.LexiconEntry
	}{
		{"duplicate after normalization", []models.LexiconEntry{
			{Term: "Rate Hike", Polarity: models.Hawkish, Weight: 1, Domain: models.DomainPolicy},
			{Term: "rate  hike", Polarity: models.Dovish, Weight: 1, Domain: models.DomainPolicy},
		}},
		{"zero weight", []models.LexiconEntry{{Term: "hike", Polarity: models.Hawkish, Domain: models.DomainPolicy}}},
		{"bad polarity", []models.LexiconEntry{{Term: "hike", Polarity: "neutral", Weight: 1, Domain: models.DomainPolicy}}},
		{"bad domain", []models.LexiconEntry{{Term: "hike", Polarity: models.Hawkish, Weight: 1, Domain: "sports"}}},
		{"punctuation only", []models.LexiconEntry{{Term: "!!", Polarity: models.Hawkish, Weight: 1, Domain: models.DomainPolicy}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries, WordPrefix)
			assert.ErrorIs(t, err, models.ErrInputValidation)
		})
	}

	_, err := New(nil, "fuzzy")
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestVersionAndWith(t *testing.T) {
	l := englishLexicon(t, WordPrefix)
	same := englishLexicon(t, WordPrefix)
	assert.Equal(t, l.Version(), same.Version())

	edited, err := l.With(models.LexiconEntry{Term: "cut", Polarity: models.Dovish, Weight: 2.5, Domain: models.DomainPolicy})
	require.NoError(t, err)
	assert.NotEqual(t, l.Version(), edited.Version())
	assert.Equal(t, l.Len(), edited.Len())
	assert.InDelta(t, 2.0, l.Score([]string{"cut"}).DovishWeight, 1e-12, "original snapshot is unchanged")
	assert.InDelta(t, 2.5, edited.Score([]string{"cut"}).DovishWeight, 1e-12)
}

func TestNormalized(t *testing.T) {
	l, err := New([]models.LexiconEntry{
		{Term: "a", Polarity: models.Hawkish, Weight: 1, Domain: models.DomainPolicy},
		{Term: "b", Polarity: models.Hawkish, Weight: 2, Domain: models.DomainPolicy},
		{Term: "c", Polarity: models.Hawkish, Weight: 3, Domain: models.DomainPolicy},
		{Term: "d", Polarity: models.Dovish, Weight: 5, Domain: models.DomainGrowth},
	}, WordPrefix)
	require.NoError(t, err)

	n, err := l.Normalized()
	require.NoError(t, err)
	w := map[string]float64{}
	for _, e := range n.Entries() {
		w[e.Term] = e.Weight
	}
	assert.InDelta(t, 1.0, w["b"], 1e-12)
	assert.InDelta(t, 1.0, (w["a"]+w["b"]+w["c"])/3, 1e-12)
	assert.InDelta(t, 1.0-0.5/0.816496580927726, w["a"], 1e-9)
	assert.InDelta(t, 1.0, w["d"], 1e-12, "single-entry polarity maps to the mean")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
match_mode: word_prefix
entries:
  - {term: tightening, polarity: hawkish, weight: 1.5, domain: policy}
  - {term: easing, polarity: dovish, weight: 1.5, domain: policy}
`), 0o644))
	l, err := LoadFile(good)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, WordPrefix, l.Mode())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entries:\n  - {term: x, polarity: hawkish, weight: 1, domain: policy, colour: red}\n"), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, models.ErrInputValidation)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func mustDate(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}
