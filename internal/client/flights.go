package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/avelora/skybook/internal/domain"
	"github.com/avelora/skybook/pkg/httpclient"
)

// FlightsClient talks to the flight catalog service over HTTP.
type FlightsClient struct {
	baseURL    string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// NewFlightsClient creates a flight catalog client for the given base URL.
func NewFlightsClient(baseURL string, httpClient HTTPDoer, logger *slog.Logger) *FlightsClient {
	return &FlightsClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetFlight looks up a single flight by its number.
func (c *FlightsClient) GetFlight(ctx context.Context, flightNumber string) (*domain.Flight, error) {
	u := c.baseURL + "/api/v1/flights/" + url.PathEscape(flightNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create get flight request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call flight service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "flights")
	}

	var flight domain.Flight
	if err := json.NewDecoder(resp.Body).Decode(&flight); err != nil {
		return nil, fmt.Errorf("decode flight response: %w", err)
	}

	return &flight, nil
}

// ListFlights returns one page of the flight catalog.
func (c *FlightsClient) ListFlights(ctx context.Context, page, size int) (*FlightPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	u := c.baseURL + "/api/v1/flights?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create list flights request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call flight service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "flights")
	}

	var pageResp FlightPage
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("decode flights page: %w", err)
	}

	if pageResp.Items == nil {
		pageResp.Items = []domain.Flight{}
	}

	return &pageResp, nil
}

// Ping probes the flight service health endpoint.
func (c *FlightsClient) Ping(ctx context.Context) error {
	return pingLeaf(ctx, c.httpClient, c.baseURL, "flights")
}
