package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/storage"
)

func TestParseAsOf(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("KST", 9*3600)) }

	got, err := parseAsOf("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 20, 6, 7, 0, time.UTC), got)

	got, err = parseAsOf("2024-11-28", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC), got)

	got, err = parseAsOf("2024-11-28T10:00:00+09:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 28, 1, 0, 0, 0, time.UTC), got)

	_, err = parseAsOf("28/11/2024", now)
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestDeriveStress(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = deriveStress(store, 8)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	var obs []models.Observation
	for q := 0; q < 16; q++ {
		date := time.Date(2020, time.Month(1+3*q), 1, 0, 0, 0, 0, time.UTC)
		obs = append(obs,
			models.Observation{Series: "household_credit", Date: date, Value: 150 + 2*float64(q) + float64(q%3)},
			models.Observation{Series: "gdp", Date: date, Value: 100})
	}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 1460; d++ {
		date := start.AddDate(0, 0, d)
		obs = append(obs,
			models.Observation{Series: "usd_krw", Date: date, Value: 1200 + 50*math.Sin(float64(d)/40)},
			models.Observation{Series: "term_spread", Date: date, Value: 0.5 + 0.2*math.Cos(float64(d)/90)})
	}
	require.NoError(t, store.UpsertObservations(obs))

	fsi, err := deriveStress(store, 8)
	require.NoError(t, err)
	require.Len(t, fsi, 25)
	for _, o := range fsi {
		assert.Equal(t, "fsi", o.Series)
		assert.Equal(t, 1, o.Date.Day())
		assert.Less(t, math.Abs(o.Value), 1.0)
	}
}
