package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/skybook/internal/client"
	"github.com/avelora/skybook/internal/domain"
	apperrors "github.com/avelora/skybook/pkg/errors"
)

// fakeCatalog is a client.Flights stub counting calls.
type fakeCatalog struct {
	flight    *domain.Flight
	err       error
	getCalls  int
	listCalls int
}

func (f *fakeCatalog) GetFlight(_ context.Context, _ string) (*domain.Flight, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.flight
	return &cp, nil
}

func (f *fakeCatalog) ListFlights(_ context.Context, page, size int) (*client.FlightPage, error) {
	f.listCalls++
	return &client.FlightPage{Page: page, PageSize: size, Items: []domain.Flight{*f.flight}}, nil
}

func sampleFlight() *domain.Flight {
	return &domain.Flight{
		FlightNumber: "AFL031",
		FromAirport:  "SVO",
		ToAirport:    "LED",
		Date:         time.Date(2026, 10, 8, 20, 0, 0, 0, time.UTC),
		Price:        1500,
	}
}

func setupCache(t *testing.T, catalog client.Flights) (*FlightCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFlightCache(catalog, rc, time.Hour, logger), mr
}

func TestFlightCache_MissThenHit(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, _ := setupCache(t, catalog)

	first, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)
	assert.Equal(t, "AFL031", first.FlightNumber)
	assert.Equal(t, 1, catalog.getCalls)

	second, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, catalog.getCalls, "second lookup should be served from cache")
}

func TestFlightCache_StoresWithTTL(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, mr := setupCache(t, catalog)

	_, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)

	require.True(t, mr.Exists("flight:AFL031"))
	assert.Equal(t, time.Hour, mr.TTL("flight:AFL031"))
}

func TestFlightCache_ExpiryRefetches(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, mr := setupCache(t, catalog)

	_, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.getCalls)
}

func TestFlightCache_CatalogNotFound(t *testing.T) {
	catalog := &fakeCatalog{err: apperrors.NotFound("flight", "ZZ999")}
	cache, mr := setupCache(t, catalog)

	_, err := cache.GetFlight(t.Context(), "ZZ999")
	require.Error(t, err)
	assert.False(t, mr.Exists("flight:ZZ999"), "errors must not be cached")
}

func TestFlightCache_CorruptEntryFallsBack(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, mr := setupCache(t, catalog)

	require.NoError(t, mr.Set("flight:AFL031", "{not json"))

	flight, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)
	assert.Equal(t, "AFL031", flight.FlightNumber)
	assert.Equal(t, 1, catalog.getCalls)

	// The corrupt entry should have been replaced by a good one.
	raw, err := mr.Get("flight:AFL031")
	require.NoError(t, err)
	var cached domain.Flight
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, 1500, cached.Price)
}

func TestFlightCache_RedisDownFallsBack(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, mr := setupCache(t, catalog)
	mr.Close()

	flight, err := cache.GetFlight(t.Context(), "AFL031")
	require.NoError(t, err)
	assert.Equal(t, "AFL031", flight.FlightNumber)
	assert.Equal(t, 1, catalog.getCalls)
}

func TestFlightCache_ListPassesThrough(t *testing.T) {
	catalog := &fakeCatalog{flight: sampleFlight()}
	cache, _ := setupCache(t, catalog)

	page, err := cache.ListFlights(t.Context(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, catalog.listCalls)

	_, err = cache.ListFlights(t.Context(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.listCalls, "listing is never cached")
}
