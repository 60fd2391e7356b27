// Package lexicon scores policy documents against a weighted hawkish/dovish
// term dictionary.
package lexicon

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v2"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/stats"
)

// MatchMode controls where a term occurrence may start.
type MatchMode string

const (
	// WordPrefix requires a term to start at a token boundary.
	WordPrefix MatchMode = "word_prefix"
	// Substring lets a term start anywhere, for agglutinative text.
	Substring MatchMode = "substring"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

type compiledTerm struct {
	key   string
	runes int
	entry models.LexiconEntry
}

// Lexicon is an immutable snapshot of entries. Edits produce a new Lexicon
// with a new Version.
type Lexicon struct {
	mode     MatchMode
	entries  []models.LexiconEntry
	compiled []compiledTerm
	version  string
}

type fileFormat struct {
	MatchMode MatchMode             `yaml:"match_mode"`
	Entries   []models.LexiconEntry `yaml:"entries"`
}

// New validates entries and builds a Lexicon. Terms are compared after
// normalization, so "Rate Hike" and "rate  hike" collide.
func New(entries []models.LexiconEntry, mode MatchMode) (*Lexicon, error) {
	switch mode {
	case "":
		mode = WordPrefix
	case WordPrefix, Substring:
	default:
		return nil, models.NewError(models.KindInputValidation, "lexicon", "", "unknown match mode %q", mode)
	}

	seen := make(map[string]string, len(entries))
	l := &Lexicon{mode: mode}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		key := NormalizeTerm(e.Term)
		if key == "" {
			return nil, models.NewError(models.KindInputValidation, "lexicon", e.Term, "term has no letters or digits")
		}
		if prev, dup := seen[key]; dup {
			return nil, models.NewError(models.KindInputValidation, "lexicon", e.Term, "duplicate of term %q", prev)
		}
		seen[key] = e.Term
		l.entries = append(l.entries, e)
		l.compiled = append(l.compiled, compiledTerm{key: key, runes: utf8.RuneCountInString(key), entry: e})
	}

	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].Term < l.entries[j].Term })
	sort.Slice(l.compiled, func(i, j int) bool {
		a, b := l.compiled[i], l.compiled[j]
		if a.runes != b.runes {
			return a.runes > b.runes
		}
		return a.key < b.key
	})
	l.version = l.computeVersion()
	return l, nil
}

// Default returns the embedded Bank of Korea lexicon.
func Default() (*Lexicon, error) {
	return parse(defaultLexiconYAML, "default")
}

// LoadFile reads a YAML lexicon.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*Lexicon, error) {
	var f fileFormat
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, models.WrapError(models.KindInputValidation, "lexicon", source, err, "failed to parse lexicon")
	}
	if len(f.Entries) == 0 {
		return nil, models.NewError(models.KindInputValidation, "lexicon", source, "lexicon has no entries")
	}
	return New(f.Entries, f.MatchMode)
}

// Version identifies the entry set and match mode.
func (l *Lexicon) Version() string { return l.version }

// Mode returns the match mode.
func (l *Lexicon) Mode() MatchMode { return l.mode }

// Len returns the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// Entries returns a copy of the entries sorted by term.
func (l *Lexicon) Entries() []models.LexiconEntry {
	out := make([]models.LexiconEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// With returns a new Lexicon where the given entries replace or extend the
// current ones by term.
func (l *Lexicon) With(updates ...models.LexiconEntry) (*Lexicon, error) {
	byKey := make(map[string]models.LexiconEntry, len(l.entries)+len(updates))
	for _, e := range l.entries {
		byKey[NormalizeTerm(e.Term)] = e
	}
	for _, e := range updates {
		byKey[NormalizeTerm(e.Term)] = e
	}
	merged := make([]models.LexiconEntry, 0, len(byKey))
	for _, e := range byKey {
		merged = append(merged, e)
	}
	return New(merged, l.mode)
}

// Normalized rescales weights within each polarity to mean 1 and standard
// deviation 0.5, clipped to [0.3, 3.0].
func (l *Lexicon) Normalized() (*Lexicon, error) {
	acc := map[models.Polarity]*stats.Running{
		models.Hawkish: {},
		models.Dovish:  {},
	}
	for _, e := range l.entries {
		acc[e.Polarity].Add(e.Weight)
	}
	out := make([]models.LexiconEntry, len(l.entries))
	for i, e := range l.entries {
		r := acc[e.Polarity]
		sd := r.PopulationStdDev()
		if sd < stats.Epsilon {
			sd = 1
		}
		e.Weight = stats.Clip(1+0.5*(e.Weight-r.Mean)/sd, 0.3, 3.0)
		out[i] = e
	}
	return New(out, l.mode)
}

func (l *Lexicon) computeVersion() string {
	h := sha256.New()
	h.Write([]byte(l.mode))
	for _, e := range l.entries {
		fmt.Fprintf(h, "\n%s|%s|%s|%s", e.Term, e.Polarity, strconv.FormatFloat(e.Weight, 'g', -1, 64), e.Domain)
	}
	return "lx-" + hex.EncodeToString(h.Sum(nil)[:6])
}
