package ecos

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/models"
)

func testClient(url string) *Client {
	return NewClient(url, "KEY", Options{Timeout: 5 * time.Second, Retries: 3, RateLimit: 1000, Backoff: time.Millisecond})
}

func TestFetchSeries(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"StatisticSearch":{"list_total_count":3,"row":[
			{"STAT_CODE":"817Y002","ITEM_CODE1":"010200000","TIME":"20240102","DATA_VALUE":"3.285"},
			{"STAT_CODE":"817Y002","ITEM_CODE1":"010200000","TIME":"20240103","DATA_VALUE":"3.301"},
			{"STAT_CODE":"817Y002","ITEM_CODE1":"010200000","TIME":"20240104","DATA_VALUE":"-"}
		]}}`))
	}))
	defer srv.Close()

	spec, err := Lookup("ktb_3y")
	require.NoError(t, err)
	obs, err := testClient(srv.URL).FetchSeries(context.Background(), spec,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/StatisticSearch/KEY/json/kr/1/100000/817Y002/D/20240101/20240131/010200000", path)
	require.Len(t, obs, 2, "unparsable values are skipped")
	assert.Equal(t, "ktb_3y", obs[0].Series)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), obs[0].Date)
	assert.InDelta(t, 3.301, obs[1].Value, 1e-12)
}

func TestFetchSeriesNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RESULT":{"CODE":"INFO-200","MESSAGE":"해당하는 데이터가 없습니다."}}`))
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).FetchSeries(context.Background(), Known["cpi"], time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestFetchSeriesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RESULT":{"CODE":"INFO-100","MESSAGE":"인증키가 유효하지 않습니다."}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchSeries(context.Background(), Known["cpi"], time.Now(), time.Now())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "INFO-100", apiErr.Code)
}

func TestFetchSeriesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"StatisticSearch":{"list_total_count":1,"row":[{"TIME":"202401","DATA_VALUE":"113.15"}]}}`))
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).FetchSeries(context.Background(), Known["cpi"], time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, obs, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), obs[0].Date)
}

func TestFetchSeriesGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchSeries(context.Background(), Known["cpi"], time.Now(), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "max retries exceeded"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchSeriesRequiresKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", Options{})
	_, err := c.FetchSeries(context.Background(), Known["cpi"], time.Now(), time.Now())
	assert.ErrorIs(t, err, models.ErrMissingInput)
}

func TestPeriods(t *testing.T) {
	d := time.Date(2024, 8, 22, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		cycle Cycle
		want  string
		back  time.Time
	}{
		{Daily, "20240822", d},
		{Monthly, "202408", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)},
		{Quarterly, "2024Q3", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{Annual, "2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := FormatPeriod(tt.cycle, d)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		back, err := ParsePeriod(tt.cycle, got)
		require.NoError(t, err)
		assert.Equal(t, tt.back, back)
	}
	_, err := ParsePeriod(Quarterly, "2024Q5")
	assert.Error(t, err)
	_, err = Lookup("gdp_nowcast")
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestDerivedSeries(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	short := []models.Observation{{Date: day(1, 2), Value: 3.2}, {Date: day(1, 3), Value: 3.3}}
	long := []models.Observation{{Date: day(1, 3), Value: 3.5}, {Date: day(1, 4), Value: 3.6}}
	spread := TermSpread(short, long)
	require.Len(t, spread, 1)
	assert.Equal(t, "term_spread", spread[0].Series)
	assert.InDelta(t, 0.2, spread[0].Value, 1e-12)

	monthly := []models.Observation{
		{Date: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 103},
	}
	yoy := YearOverYear("inflation", monthly)
	require.Len(t, yoy, 1)
	assert.InDelta(t, 3.0, yoy[0].Value, 1e-9)
}
