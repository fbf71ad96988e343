// Package client contains the HTTP adapters for the three leaf services the
// booking gateway orchestrates: the flight catalog, the ticket ledger, and
// the privilege (bonus-point) ledger.
package client

import (
	"context"
	"net/http"

	"github.com/avelora/skybook/internal/domain"
)

// userHeader carries the caller identity on every leaf request that is scoped
// to a user. The leaf services key their records by it.
const userHeader = "X-User-Name"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FlightPage is one page of the flight catalog listing.
type FlightPage struct {
	Page          int             `json:"page"`
	PageSize      int             `json:"pageSize"`
	TotalElements int             `json:"totalElements"`
	Items         []domain.Flight `json:"items"`
}

// Flights is the flight catalog contract consumed by the booking service.
type Flights interface {
	GetFlight(ctx context.Context, flightNumber string) (*domain.Flight, error)
	ListFlights(ctx context.Context, page, size int) (*FlightPage, error)
}

// Tickets is the ticket ledger contract consumed by the booking service.
// Writes are idempotent on ticketUid; the ledger enforces uniqueness.
type Tickets interface {
	CreateTicket(ctx context.Context, username, ticketUID, flightNumber string, price int) error
	GetTicket(ctx context.Context, ticketUID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, username string) ([]domain.Ticket, error)
	DeleteTicket(ctx context.Context, ticketUID string) error
}

// Privileges is the bonus-point ledger contract consumed by the booking
// service. History entries are keyed by ticketUid, which makes them the
// compensation handle for a debit.
type Privileges interface {
	GetPrivilege(ctx context.Context, username string) (*domain.Privilege, error)
	GetPrivilegeInfo(ctx context.Context, username string) (*domain.PrivilegeInfo, error)
	AppendHistory(ctx context.Context, username, ticketUID string, balanceDiff int, operationType string) error
	GetHistoryEntry(ctx context.Context, username, ticketUID string) (*domain.PrivilegeHistoryEntry, error)
	RevertHistoryEntry(ctx context.Context, username, ticketUID string) error
}
