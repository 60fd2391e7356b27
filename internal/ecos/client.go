package ecos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
)

// codeNoData is the ECOS result code for an empty query.
const codeNoData = "INFO-200"

// maxRows is the page size requested per call.
const maxRows = 100000

// Client provides access to the ECOS StatisticSearch API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Timeout   time.Duration
	Retries   int
	RateLimit float64 // requests per second
	Backoff   time.Duration
}

// Payload shapes returned by StatisticSearch
type searchResponse struct {
	StatisticSearch *struct {
		ListTotalCount int         `json:"list_total_count"`
		Row            []searchRow `json:"row"`
	} `json:"StatisticSearch"`
	Result *apiResult `json:"RESULT"`
}

type searchRow struct {
	StatCode  string `json:"STAT_CODE"`
	ItemCode1 string `json:"ITEM_CODE1"`
	Time      string `json:"TIME"`
	DataValue string `json:"DATA_VALUE"`
}

type apiResult struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

// APIError is an error payload returned by ECOS.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ecos error %s: %s", e.Code, e.Message)
}

// NewClient creates a new ECOS client
func NewClient(baseURL, apiKey string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		retries: opts.Retries,
		backoff: opts.Backoff,
	}
}

// FetchSeries retrieves one series between start and end, inclusive. A query
// that ECOS answers with "no data" returns an empty slice.
func (c *Client) FetchSeries(ctx context.Context, spec SeriesSpec, start, end time.Time) ([]models.Observation, error) {
	if c.apiKey == "" {
		return nil, models.NewError(models.KindMissingInput, "ecos", spec.Name, "api key is not configured")
	}
	u, err := c.searchURL(spec, start, end)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", spec.Name, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", spec.Name, err)
	}

	if payload.StatisticSearch == nil {
		if payload.Result != nil && payload.Result.Code == codeNoData {
			logger.Debug("ECOS returned no data for %s", spec.Name)
			return nil, nil
		}
		if payload.Result != nil {
			return nil, &APIError{Code: payload.Result.Code, Message: payload.Result.Message}
		}
		return nil, fmt.Errorf("failed to fetch %s: unexpected response shape", spec.Name)
	}

	obs := make([]models.Observation, 0, len(payload.StatisticSearch.Row))
	for _, row := range payload.StatisticSearch.Row {
		date, err := ParsePeriod(spec.Cycle, row.Time)
		if err != nil {
			logger.Debug("Skipping %s row with bad period %q: %v", spec.Name, row.Time, err)
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row.DataValue), ",", ""), 64)
		if err != nil {
			logger.Debug("Skipping %s row %s with value %q", spec.Name, row.Time, row.DataValue)
			continue
		}
		obs = append(obs, models.Observation{Series: spec.Name, Date: date, Value: value})
	}
	logger.Info("Fetched %d observations for %s", len(obs), spec.Name)
	return obs, nil
}

// searchURL builds
// {base}/StatisticSearch/{key}/json/kr/1/{n}/{stat}/{cycle}/{start}/{end}/{items...}
func (c *Client) searchURL(spec SeriesSpec, start, end time.Time) (string, error) {
	from, err := FormatPeriod(spec.Cycle, start)
	if err != nil {
		return "", err
	}
	to, err := FormatPeriod(spec.Cycle, end)
	if err != nil {
		return "", err
	}
	parts := []string{"StatisticSearch", c.apiKey, "json", "kr", "1", strconv.Itoa(maxRows),
		spec.StatCode, string(spec.Cycle), from, to}
	for _, item := range spec.Items {
		if item != "" {
			parts = append(parts, item)
		}
	}
	u, err := url.JoinPath(c.baseURL, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	return u, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
