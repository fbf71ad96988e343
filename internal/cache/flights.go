// Package cache provides a Redis read-through cache in front of the flight
// catalog. Flights are immutable catalog entries, so cached copies never go
// stale within their TTL, and the cache is never load-bearing: any Redis
// failure falls back to a direct catalog call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelora/skybook/internal/client"
	"github.com/avelora/skybook/internal/domain"
)

const keyPrefix = "flight:"

// FlightCache wraps a flight catalog client with a Redis cache for single
// flight lookups. Listing is passed through uncached.
type FlightCache struct {
	inner  client.Flights
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewFlightCache creates a read-through cache over the given catalog client.
func NewFlightCache(inner client.Flights, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *FlightCache {
	return &FlightCache{
		inner:  inner,
		client: redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// GetFlight returns the cached flight if present, otherwise fetches it from
// the catalog and caches the result.
func (c *FlightCache) GetFlight(ctx context.Context, flightNumber string) (*domain.Flight, error) {
	key := keyPrefix + flightNumber

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var flight domain.Flight
		if err := json.Unmarshal(data, &flight); err == nil {
			return &flight, nil
		}
		// Corrupt entry: drop it and fall through to the catalog.
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "flight cache read failed, falling back to catalog",
			slog.String("flight_number", flightNumber),
			slog.String("error", err.Error()),
		)
	}

	flight, err := c.inner.GetFlight(ctx, flightNumber)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, key, flight); err != nil {
		c.logger.WarnContext(ctx, "flight cache write failed",
			slog.String("flight_number", flightNumber),
			slog.String("error", err.Error()),
		)
	}

	return flight, nil
}

// ListFlights passes through to the catalog client.
func (c *FlightCache) ListFlights(ctx context.Context, page, size int) (*client.FlightPage, error) {
	return c.inner.ListFlights(ctx, page, size)
}

func (c *FlightCache) set(ctx context.Context, key string, flight *domain.Flight) error {
	data, err := json.Marshal(flight)
	if err != nil {
		return fmt.Errorf("marshal flight: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set flight: %w", err)
	}
	return nil
}
