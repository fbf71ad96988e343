package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/avelora/skybook/internal/domain"
	"github.com/avelora/skybook/pkg/httpclient"
)

// TicketsClient talks to the ticket ledger service over HTTP.
type TicketsClient struct {
	baseURL    string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// NewTicketsClient creates a ticket ledger client for the given base URL.
func NewTicketsClient(baseURL string, httpClient HTTPDoer, logger *slog.Logger) *TicketsClient {
	return &TicketsClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateTicket writes a PAID ticket record keyed by the gateway-chosen
// ticketUid. The ledger deduplicates on the uid, so a retried create cannot
// produce a second ticket.
func (c *TicketsClient) CreateTicket(ctx context.Context, username, ticketUID, flightNumber string, price int) error {
	type createTicketRequest struct {
		TicketUID    string `json:"ticketUid"`
		FlightNumber string `json:"flightNumber"`
		Price        int    `json:"price"`
		Status       string `json:"status"`
	}

	body, err := json.Marshal(createTicketRequest{
		TicketUID:    ticketUID,
		FlightNumber: flightNumber,
		Price:        price,
		Status:       domain.TicketStatusPaid,
	})
	if err != nil {
		return fmt.Errorf("marshal create ticket request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tickets", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call ticket service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "tickets")
	}

	c.logger.DebugContext(ctx, "ticket created",
		slog.String("ticket_uid", ticketUID),
		slog.String("flight_number", flightNumber),
	)

	return nil
}

// GetTicket fetches a single ticket by its uid.
func (c *TicketsClient) GetTicket(ctx context.Context, ticketUID string) (*domain.Ticket, error) {
	u := c.baseURL + "/api/v1/tickets/" + url.PathEscape(ticketUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create get ticket request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call ticket service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "tickets")
	}

	var ticket domain.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("decode ticket response: %w", err)
	}

	return &ticket, nil
}

// ListTickets returns every ticket owned by the user.
func (c *TicketsClient) ListTickets(ctx context.Context, username string) ([]domain.Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tickets", nil)
	if err != nil {
		return nil, fmt.Errorf("create list tickets request: %w", err)
	}
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call ticket service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "tickets")
	}

	var tickets []domain.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&tickets); err != nil {
		return nil, fmt.Errorf("decode tickets response: %w", err)
	}

	if tickets == nil {
		tickets = []domain.Ticket{}
	}

	return tickets, nil
}

// DeleteTicket removes a ticket record. Used both for cancellation and as
// the compensating action when a purchase saga fails after ticket creation.
func (c *TicketsClient) DeleteTicket(ctx context.Context, ticketUID string) error {
	u := c.baseURL + "/api/v1/tickets/" + url.PathEscape(ticketUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create delete ticket request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call ticket service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "tickets")
	}

	c.logger.DebugContext(ctx, "ticket deleted",
		slog.String("ticket_uid", ticketUID),
	)

	return nil
}

// Ping probes the ticket service health endpoint.
func (c *TicketsClient) Ping(ctx context.Context) error {
	return pingLeaf(ctx, c.httpClient, c.baseURL, "tickets")
}
