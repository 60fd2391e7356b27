package lexicon

import (
	"strings"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/stats"
)

// Epsilon keeps the tone ratio finite.
const Epsilon = 1e-6

// ToneOf computes (h - d) / (h + d + Epsilon), or 0 when nothing matched.
func ToneOf(h, d float64) float64 {
	if h+d == 0 {
		return 0
	}
	return stats.Clip((h-d)/(h+d+Epsilon), -1, 1)
}

// Score matches tokens against the lexicon. Longer terms are matched first
// and the text they cover is not available to shorter terms.
func (l *Lexicon) Score(tokens []string) models.DocumentToneScore {
	text := normalizeTokens(tokens)
	consumed := make([]bool, len(text))

	res := models.DocumentToneScore{
		LexiconVersion: l.version,
		Domains:        make(map[models.Domain]models.DomainScore),
		Matches:        []models.TermMatch{},
	}

	for _, ct := range l.compiled {
		n := l.countOccurrences(text, ct.key, consumed)
		if n == 0 {
			continue
		}
		w := ct.entry.Weight * float64(n)
		ds := res.Domains[ct.entry.Domain]
		switch ct.entry.Polarity {
		case models.Hawkish:
			res.HawkishCount += n
			res.HawkishWeight += w
			ds.HawkishWeight += w
		case models.Dovish:
			res.DovishCount += n
			res.DovishWeight += w
			ds.DovishWeight += w
		}
		res.Domains[ct.entry.Domain] = ds
		res.Matches = append(res.Matches, models.TermMatch{
			Term:     ct.entry.Term,
			Polarity: ct.entry.Polarity,
			Domain:   ct.entry.Domain,
			Count:    n,
			Weight:   w,
		})
	}

	for d, ds := range res.Domains {
		ds.Tone = ToneOf(ds.HawkishWeight, ds.DovishWeight)
		res.Domains[d] = ds
	}
	res.Tone = ToneOf(res.HawkishWeight, res.DovishWeight)
	return res
}

// ScoreDocument scores a document's tokens, tokenizing its text when no
// tokens were extracted.
func (l *Lexicon) ScoreDocument(doc *models.Document) (models.DocumentToneScore, error) {
	if err := doc.Validate(); err != nil {
		return models.DocumentToneScore{}, err
	}
	tokens := doc.Tokens
	if len(tokens) == 0 {
		tokens = Tokenize(doc.Text)
	}
	res := l.Score(tokens)
	res.DocumentID = doc.ID
	return res, nil
}

func (l *Lexicon) countOccurrences(text, key string, consumed []bool) int {
	count := 0
	from := 0
	for from <= len(text)-len(key) {
		i := strings.Index(text[from:], key)
		if i < 0 {
			break
		}
		pos := from + i
		if l.boundaryOK(text, pos) && free(consumed, pos, pos+len(key)) {
			for k := pos; k < pos+len(key); k++ {
				consumed[k] = true
			}
			count++
			from = pos + len(key)
			continue
		}
		from = pos + 1
	}
	return count
}

func (l *Lexicon) boundaryOK(text string, pos int) bool {
	if l.mode == Substring {
		return true
	}
	return pos == 0 || text[pos-1] == ' '
}

func free(consumed []bool, start, end int) bool {
	for k := start; k < end; k++ {
		if consumed[k] {
			return false
		}
	}
	return true
}
