package tone

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/models"
)

// Scored pairs a document's lexicon score with its adjusted tone.
type Scored struct {
	Score models.DocumentToneScore
	Index models.AdjustedToneIndex
}

// BatchResult holds successful items in input order and per-document failures.
type BatchResult struct {
	Items    []Scored
	Failures []models.Failure
}

// Config tunes a Scorer.
type Config struct {
	Market     MarketModel
	NewsWindow Window
	Workers    int
}

// ConfigFor derives the scorer settings from a parameter set's scoring
// section. workers <= 0 means one per CPU.
func ConfigFor(p models.ScoringParams, workers int) Config {
	return Config{
		Market: MarketModel{
			Indicators: append([]Indicator(nil), p.Indicators...),
			Window:     p.MarketWindow,
			Scale:      p.MarketScale,
		},
		NewsWindow: p.NewsWindow,
		Workers:    workers,
	}
}

// Scorer runs lexicon scoring and combination against read-only snapshots of
// the lexicon, the weight set and the feed.
type Scorer struct {
	lex      *lexicon.Lexicon
	combiner *Combiner
	cfg      Config
}

func NewScorer(lex *lexicon.Lexicon, combiner *Combiner, cfg Config) *Scorer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Market.Scale == 0 {
		cfg.Market.Scale = 10
	}
	return &Scorer{lex: lex, combiner: combiner, cfg: cfg}
}

// ScoreOne scores a single document.
func (s *Scorer) ScoreOne(doc *models.Document, feed Feed, computedAt time.Time) (Scored, error) {
	score, err := s.lex.ScoreDocument(doc)
	if err != nil {
		return Scored{}, err
	}

	var market, news *float64
	if v, ok := s.cfg.Market.Reaction(feed, doc.EventDate); ok {
		market = &v
	}
	if v, ok := NewsSentiment(feed, doc.EventDate, s.cfg.NewsWindow); ok {
		news = &v
	}

	idx, err := s.combiner.Combine(score, doc.EventDate, market, news, computedAt)
	if err != nil {
		return Scored{}, err
	}
	return Scored{Score: score, Index: idx}, nil
}

// ScoreBatch scores documents in parallel. A failing document is recorded and
// the rest continue; only context cancellation aborts the batch.
func (s *Scorer) ScoreBatch(ctx context.Context, docs []models.Document, feed Feed, computedAt time.Time) (BatchResult, error) {
	results := make([]Scored, len(docs))
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = s.ScoreOne(&docs[i], feed, computedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	for i := range docs {
		if errs[i] != nil {
			out.Failures = append(out.Failures, models.NewFailure(docs[i].ID, errs[i]))
			continue
		}
		out.Items = append(out.Items, results[i])
	}
	return out, nil
}
