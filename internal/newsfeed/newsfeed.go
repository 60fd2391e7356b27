// Package newsfeed turns RSS and Atom headlines into daily news signals.
package newsfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
)

// Fetcher scores feed items with a lexicon.
type Fetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	lex     *lexicon.Lexicon
	workers int
}

func NewFetcher(lex *lexicon.Lexicon, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		parser:  gofeed.NewParser(),
		lex:     lex,
		workers: 4,
	}
}

// Fetch downloads one feed and returns one signal per publication day. The
// magnitude is the mean tone of that day's items with at least one lexicon
// match; days without matches produce no signal.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]models.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status: %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return f.Signals(sourceName(feedURL), feed.Items), nil
}

// Signals aggregates scored items into daily signals for one source.
func (f *Fetcher) Signals(source string, items []*gofeed.Item) []models.Signal {
	type acc struct {
		sum float64
		n   int
	}
	days := make(map[time.Time]*acc)
	for _, item := range items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			continue
		}
		score := f.lex.Score(lexicon.Tokenize(item.Title + " " + item.Description))
		if score.HawkishCount+score.DovishCount == 0 {
			continue
		}
		u := published.UTC()
		day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.sum += score.Tone
		a.n++
	}

	out := make([]models.Signal, 0, len(days))
	for day, a := range days {
		out = append(out, models.Signal{Date: day, Source: source, Magnitude: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FetchAll fetches feeds concurrently. A failing feed is reported and the
// others continue.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]models.Signal, []models.Failure) {
	results := make([][]models.Signal, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, u := range urls {
		g.Go(func() error {
			results[i], errs[i] = f.Fetch(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var signals []models.Signal
	var failures []models.Failure
	for i, u := range urls {
		if errs[i] != nil {
			logger.Warn("Failed to fetch feed %s: %v", u, errs[i])
			failures = append(failures, models.NewFailure(u, errs[i]))
			continue
		}
		signals = append(signals, results[i]...)
	}
	return signals, failures
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(u.Host, "www.") + u.Path
}
