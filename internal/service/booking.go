package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/avelora/skybook/internal/client"
	"github.com/avelora/skybook/internal/domain"
	apperrors "github.com/avelora/skybook/pkg/errors"
	"github.com/avelora/skybook/pkg/tracing"
)

// sagaTracer emits one span per saga run, nested under the HTTP server span.
var sagaTracer = tracing.Tracer("github.com/avelora/skybook/internal/service")

// CircuitOpenFallback is a fallback function for the booking saga's circuit
// breaker. When the circuit is open, it returns a structured error with a
// retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("downstream service is temporarily unavailable, please retry after 30 seconds")
}

// EventPublisher publishes booking domain events. Satisfied by
// *event.Producer.
type EventPublisher interface {
	PublishTicketPurchased(ctx context.Context, result *domain.PurchaseResult, username string) error
	PublishTicketCanceled(ctx context.Context, ticket *domain.Ticket, bonusesRefunded bool) error
	PublishCompensationFailed(ctx context.Context, ticketUID, username, saga, step, reason string) error
}

// SagaTimeouts holds per-step timeout configuration for the booking sagas.
// A zero value means no per-step timeout (inherits the parent context
// timeout). CompensationTimeout bounds compensating calls, which run on a
// detached context so a canceled request cannot abandon them mid-flight.
type SagaTimeouts struct {
	FlightTimeout       time.Duration
	TicketTimeout       time.Duration
	PrivilegeTimeout    time.Duration
	CompensationTimeout time.Duration
}

// BookingService is the saga coordinator. It sequences calls to the three
// leaf services for purchase and cancellation, tracks which side effects
// have committed, and issues compensating calls when a later step fails.
// It holds no state between requests: everything durable lives in the leaf
// services.
type BookingService struct {
	flights    client.Flights
	tickets    client.Tickets
	privileges client.Privileges
	events     EventPublisher
	logger     *slog.Logger
	timeouts   SagaTimeouts
}

// NewBookingService creates a new booking service.
func NewBookingService(
	flights client.Flights,
	tickets client.Tickets,
	privileges client.Privileges,
	events EventPublisher,
	logger *slog.Logger,
	timeouts SagaTimeouts,
) *BookingService {
	return &BookingService{
		flights:    flights,
		tickets:    tickets,
		privileges: privileges,
		events:     events,
		logger:     logger,
		timeouts:   timeouts,
	}
}

// PurchaseInput holds the parameters for a ticket purchase.
type PurchaseInput struct {
	FlightNumber    string `json:"flightNumber" validate:"required"`
	Price           int    `json:"price" validate:"required,gt=0"`
	PaidFromBalance bool   `json:"paidFromBalance"`
}

// PurchaseTicket runs the purchase saga: resolve the flight, compute the
// money/bonus split against the user's balance, create the ticket, and debit
// the bonus points. The ticket is created before the debit because ticket
// creation is the step most likely to fail validation; only one compensating
// action (deleting the ticket) can ever be needed.
func (s *BookingService) PurchaseTicket(ctx context.Context, username string, input *PurchaseInput) (*domain.PurchaseResult, error) {
	if username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if input == nil {
		return nil, apperrors.InvalidInput("purchase input is required")
	}
	if input.FlightNumber == "" {
		return nil, apperrors.InvalidInput("flight number is required")
	}
	if input.Price <= 0 {
		return nil, apperrors.InvalidInput("price must be greater than 0")
	}

	ctx, span := sagaTracer.Start(ctx, "saga.purchase")
	defer span.End()
	span.SetAttributes(attribute.String("flight_number", input.FlightNumber))

	// Step 1: resolve the flight. A miss here has no side effects.
	flight, err := s.getFlight(ctx, input.FlightNumber)
	if err != nil {
		purchasesTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("resolve flight: %w", err)
	}

	// Reject stale prices before touching either ledger.
	if input.Price != flight.Price {
		purchasesTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"price mismatch: requested %d, current flight price is %d", input.Price, flight.Price))
	}

	// Step 2: fetch the privilege account. An unknown user is a fresh
	// BRONZE/zero account for split purposes; the ledger owns creation.
	privilege, err := s.getPrivilege(ctx, username)
	if err != nil {
		purchasesTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("fetch privilege account: %w", err)
	}

	// Step 3: compute the split.
	split := domain.ComputeSplit(flight.Price, privilege.Balance, input.PaidFromBalance)

	// Step 4: the ticketUid is the idempotency and compensation key for
	// every later step.
	ticketUID := uuid.New().String()

	steps := []domain.SagaStep{
		domain.NewSagaStep(domain.SagaStepCreateTicket),
		domain.NewSagaStep(domain.SagaStepDebitBonuses),
	}

	// Step 5: create the ticket. First committing step; if it fails there
	// is nothing to compensate.
	if err := s.createTicket(ctx, username, ticketUID, flight); err != nil {
		steps[0].Fail(err.Error())
		purchasesTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	steps[0].Complete()

	// Step 6: debit the bonus points, if any apply. On failure the ticket
	// created in step 5 must be deleted before reporting the error.
	if split.PaidByBonuses > 0 {
		if err := s.debitBonuses(ctx, username, ticketUID, split.PaidByBonuses); err != nil {
			steps[1].Fail(err.Error())
			return nil, s.compensatePurchase(ctx, username, ticketUID, steps, err)
		}
	}
	steps[1].Complete()

	// Step 7: re-fetch the updated privilege snapshot. The purchase has
	// fully committed at this point, so a read failure here degrades to a
	// locally computed snapshot instead of failing the saga.
	updated, err := s.getPrivilege(ctx, username)
	if err != nil {
		s.logger.WarnContext(ctx, "privilege re-fetch failed after purchase, using computed snapshot",
			slog.String("ticket_uid", ticketUID),
			slog.String("error", err.Error()),
		)
		updated = domain.Privilege{
			Balance: privilege.Balance - split.PaidByBonuses,
			Status:  privilege.Status,
		}
	}

	result := &domain.PurchaseResult{
		TicketUID:     ticketUID,
		FlightNumber:  flight.FlightNumber,
		FromAirport:   flight.FromAirport,
		ToAirport:     flight.ToAirport,
		Date:          flight.Date,
		Price:         flight.Price,
		PaidByMoney:   split.PaidByMoney,
		PaidByBonuses: split.PaidByBonuses,
		Status:        domain.TicketStatusPaid,
		Privilege:     updated,
	}

	purchasesTotal.WithLabelValues(outcomeSuccess).Inc()

	// Publish event; log but do not fail on error.
	if err := s.events.PublishTicketPurchased(ctx, result, username); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ticket.purchased event",
			slog.String("ticket_uid", ticketUID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "ticket purchased",
		slog.String("ticket_uid", ticketUID),
		slog.String("username", username),
		slog.String("flight_number", flight.FlightNumber),
		slog.Int("paid_by_money", split.PaidByMoney),
		slog.Int("paid_by_bonuses", split.PaidByBonuses),
	)

	return result, nil
}

// compensatePurchase deletes the ticket created by a purchase whose debit
// step failed. It runs on a detached context: a caller that has already
// given up must not leave an orphaned ticket behind. Exactly one
// compensation pass is attempted; if it fails the inconsistency is surfaced
// as CompensationFailed and reported for reconciliation.
func (s *BookingService) compensatePurchase(ctx context.Context, username, ticketUID string, steps []domain.SagaStep, cause error) error {
	compCtx, cancel := s.compensationContext(ctx)
	defer cancel()

	if err := s.tickets.DeleteTicket(compCtx, ticketUID); err != nil {
		steps[0].Fail(err.Error())
		compensationsTotal.WithLabelValues(sagaPurchase, outcomeFailed).Inc()
		purchasesTotal.WithLabelValues(outcomeCompensationFailed).Inc()

		s.logger.ErrorContext(compCtx, "purchase compensation failed: ticket not deleted",
			slog.String("ticket_uid", ticketUID),
			slog.String("username", username),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)

		if pubErr := s.events.PublishCompensationFailed(compCtx, ticketUID, username, sagaPurchase, domain.SagaStepDeleteTicket, err.Error()); pubErr != nil {
			s.logger.ErrorContext(compCtx, "failed to publish compensation-failed event",
				slog.String("ticket_uid", ticketUID),
				slog.String("error", pubErr.Error()),
			)
		}

		return apperrors.CompensationFailed(fmt.Sprintf(
			"debit failed and ticket %s could not be deleted; manual reconciliation required", ticketUID))
	}

	steps[0].Compensate()
	compensationsTotal.WithLabelValues(sagaPurchase, outcomeSuccess).Inc()
	purchasesTotal.WithLabelValues(outcomeCompensated).Inc()

	s.logger.WarnContext(compCtx, "purchase compensated: ticket deleted after debit failure",
		slog.String("ticket_uid", ticketUID),
		slog.String("username", username),
		slog.String("cause", cause.Error()),
	)

	return fmt.Errorf("debit bonuses: %w", cause)
}

// CancelTicket runs the cancellation saga: delete the ticket, then reverse
// the bonus debit recorded at purchase time, if one exists. Ticket deletion
// is not reversible, so a failed point reversal after a committed deletion
// is surfaced as CompensationFailed rather than retried or swallowed.
func (s *BookingService) CancelTicket(ctx context.Context, username, ticketUID string) error {
	if username == "" {
		return apperrors.InvalidInput("username is required")
	}

	ctx, span := sagaTracer.Start(ctx, "saga.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_uid", ticketUID))

	// Step 1: fetch the ticket. Tickets owned by another user are reported
	// as absent rather than forbidden.
	ticket, err := s.getTicket(ctx, ticketUID)
	if err != nil {
		cancellationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("fetch ticket: %w", err)
	}
	if ticket.Username != username {
		cancellationsTotal.WithLabelValues(outcomeFailed).Inc()
		return apperrors.NotFound("ticket", ticketUID)
	}

	// Step 2: delete the ticket record. This commits the cancellation.
	if err := s.deleteTicket(ctx, ticketUID); err != nil {
		cancellationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("delete ticket: %w", err)
	}

	// Step 3: reverse the debit, if one was recorded. The deletion is
	// committed, so the remainder runs on a detached context: cancellation
	// of the inbound request must not strand an un-refunded debit.
	refunded, err := s.refundBonuses(ctx, username, ticketUID)
	if err != nil {
		cancellationsTotal.WithLabelValues(outcomeCompensationFailed).Inc()
		return err
	}

	cancellationsTotal.WithLabelValues(outcomeSuccess).Inc()

	// Publish event; log but do not fail on error.
	if pubErr := s.events.PublishTicketCanceled(ctx, ticket, refunded); pubErr != nil {
		s.logger.ErrorContext(ctx, "failed to publish ticket.canceled event",
			slog.String("ticket_uid", ticketUID),
			slog.String("error", pubErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "ticket canceled",
		slog.String("ticket_uid", ticketUID),
		slog.String("username", username),
		slog.Bool("bonuses_refunded", refunded),
	)

	return nil
}

// refundBonuses looks up the privilege history entry for the ticket and
// reverses it. No entry means no points were involved and no ledger call is
// made. Any failure after the ticket is already gone is a partial failure:
// the caller-visible state is inconsistent until reconciled out of band.
func (s *BookingService) refundBonuses(ctx context.Context, username, ticketUID string) (bool, error) {
	compCtx, cancel := s.compensationContext(ctx)
	defer cancel()

	_, err := s.privileges.GetHistoryEntry(compCtx, username, ticketUID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, s.cancelPartialFailure(compCtx, username, ticketUID, fmt.Errorf("look up history entry: %w", err))
	}

	if err := s.privileges.RevertHistoryEntry(compCtx, username, ticketUID); err != nil {
		return false, s.cancelPartialFailure(compCtx, username, ticketUID, fmt.Errorf("revert history entry: %w", err))
	}

	compensationsTotal.WithLabelValues(sagaCancel, outcomeSuccess).Inc()
	return true, nil
}

// cancelPartialFailure reports a cancellation whose ticket is gone but whose
// bonus debit could not be reversed.
func (s *BookingService) cancelPartialFailure(ctx context.Context, username, ticketUID string, cause error) error {
	compensationsTotal.WithLabelValues(sagaCancel, outcomeFailed).Inc()

	s.logger.ErrorContext(ctx, "cancellation partial failure: ticket deleted but bonuses not refunded",
		slog.String("ticket_uid", ticketUID),
		slog.String("username", username),
		slog.String("error", cause.Error()),
	)

	if pubErr := s.events.PublishCompensationFailed(ctx, ticketUID, username, sagaCancel, domain.SagaStepRevertBonuses, cause.Error()); pubErr != nil {
		s.logger.ErrorContext(ctx, "failed to publish compensation-failed event",
			slog.String("ticket_uid", ticketUID),
			slog.String("error", pubErr.Error()),
		)
	}

	return apperrors.CompensationFailed(fmt.Sprintf(
		"ticket %s deleted but bonus refund failed; manual reconciliation required", ticketUID))
}

// GetUserProfile aggregates the user's tickets with their privilege
// snapshot. The two fetches run concurrently; either failure fails the call.
func (s *BookingService) GetUserProfile(ctx context.Context, username string) (*domain.UserProfile, error) {
	if username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}

	var (
		tickets   []domain.TicketView
		privilege domain.Privilege
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickets, err = s.ListUserTickets(gctx, username)
		return err
	})
	g.Go(func() error {
		var err error
		privilege, err = s.getPrivilege(gctx, username)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate user profile: %w", err)
	}

	return &domain.UserProfile{
		Tickets:   tickets,
		Privilege: privilege,
	}, nil
}

// ListFlights returns one page of the flight catalog.
func (s *BookingService) ListFlights(ctx context.Context, page, size int) (*client.FlightPage, error) {
	flights, err := s.flights.ListFlights(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return flights, nil
}

// ListUserTickets returns the user's tickets enriched with flight details.
// A ticket whose flight has vanished from the catalog is returned with its
// route fields empty rather than dropped.
func (s *BookingService) ListUserTickets(ctx context.Context, username string) ([]domain.TicketView, error) {
	tickets, err := s.tickets.ListTickets(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	views := make([]domain.TicketView, len(tickets))
	for i, ticket := range tickets {
		view, err := s.enrichTicket(ctx, ticket)
		if err != nil {
			return nil, err
		}
		views[i] = view
	}

	return views, nil
}

// GetUserTicket returns a single ticket enriched with flight details.
// Tickets owned by another user are reported as absent.
func (s *BookingService) GetUserTicket(ctx context.Context, username, ticketUID string) (*domain.TicketView, error) {
	ticket, err := s.getTicket(ctx, ticketUID)
	if err != nil {
		return nil, fmt.Errorf("fetch ticket: %w", err)
	}
	if ticket.Username != username {
		return nil, apperrors.NotFound("ticket", ticketUID)
	}

	view, err := s.enrichTicket(ctx, *ticket)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GetPrivilegeInfo returns the user's balance, tier, and operation history.
// An unknown user gets a fresh BRONZE account with empty history.
func (s *BookingService) GetPrivilegeInfo(ctx context.Context, username string) (*domain.PrivilegeInfo, error) {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.PrivilegeTimeout)
	defer cancel()

	info, err := s.privileges.GetPrivilegeInfo(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			fresh := domain.FreshPrivilege()
			return &domain.PrivilegeInfo{
				Balance: fresh.Balance,
				Status:  fresh.Status,
				History: []domain.PrivilegeHistoryEntry{},
			}, nil
		}
		return nil, fmt.Errorf("fetch privilege info: %w", err)
	}
	return info, nil
}

// --- saga step helpers ---

func (s *BookingService) getFlight(ctx context.Context, flightNumber string) (*domain.Flight, error) {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.FlightTimeout)
	defer cancel()
	return s.flights.GetFlight(ctx, flightNumber)
}

func (s *BookingService) getPrivilege(ctx context.Context, username string) (domain.Privilege, error) {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.PrivilegeTimeout)
	defer cancel()

	privilege, err := s.privileges.GetPrivilege(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.FreshPrivilege(), nil
		}
		return domain.Privilege{}, err
	}
	return *privilege, nil
}

func (s *BookingService) getTicket(ctx context.Context, ticketUID string) (*domain.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.TicketTimeout)
	defer cancel()
	return s.tickets.GetTicket(ctx, ticketUID)
}

func (s *BookingService) createTicket(ctx context.Context, username, ticketUID string, flight *domain.Flight) error {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.TicketTimeout)
	defer cancel()
	return s.tickets.CreateTicket(ctx, username, ticketUID, flight.FlightNumber, flight.Price)
}

func (s *BookingService) deleteTicket(ctx context.Context, ticketUID string) error {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.TicketTimeout)
	defer cancel()
	return s.tickets.DeleteTicket(ctx, ticketUID)
}

func (s *BookingService) debitBonuses(ctx context.Context, username, ticketUID string, bonuses int) error {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.PrivilegeTimeout)
	defer cancel()
	return s.privileges.AppendHistory(ctx, username, ticketUID, -bonuses, domain.OperationDebitTheAccount)
}

func (s *BookingService) enrichTicket(ctx context.Context, ticket domain.Ticket) (domain.TicketView, error) {
	view := domain.TicketView{
		TicketUID:    ticket.TicketUID,
		FlightNumber: ticket.FlightNumber,
		Price:        ticket.Price,
		Status:       ticket.Status,
	}

	flight, err := s.getFlight(ctx, ticket.FlightNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Catalog drift: the ticket outlived its flight entry.
			return view, nil
		}
		return domain.TicketView{}, fmt.Errorf("resolve flight for ticket %s: %w", ticket.TicketUID, err)
	}

	view.FromAirport = flight.FromAirport
	view.ToAirport = flight.ToAirport
	view.Date = flight.Date
	return view, nil
}

func (s *BookingService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// compensationContext detaches from the caller's cancellation while keeping
// its values (correlation id, trace context). An abandoned request must
// still finish its compensating calls.
func (s *BookingService) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.timeouts.CompensationTimeout > 0 {
		return context.WithTimeout(detached, s.timeouts.CompensationTimeout)
	}
	return detached, func() {}
}
