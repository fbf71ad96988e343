package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelora/skybook/internal/domain"
	pkgkafka "github.com/avelora/skybook/pkg/kafka"
	"github.com/avelora/skybook/pkg/logger"
)

// Kafka topics for booking domain events.
var (
	TopicTicketPurchased    = pkgkafka.Topic("ticket", "purchased")
	TopicTicketCanceled     = pkgkafka.Topic("ticket", "canceled")
	TopicCompensationFailed = pkgkafka.Topic("booking", "compensation-failed")
)

// Aggregate type constant.
const AggregateTypeTicket = "ticket"

// Source identifier for events originating from the booking gateway.
const SourceBookingGateway = "booking-gateway"

// TicketPurchasedData is the payload for a ticket.purchased event.
type TicketPurchasedData struct {
	TicketUID     string `json:"ticket_uid"`
	Username      string `json:"username"`
	FlightNumber  string `json:"flight_number"`
	Price         int    `json:"price"`
	PaidByMoney   int    `json:"paid_by_money"`
	PaidByBonuses int    `json:"paid_by_bonuses"`
}

// TicketCanceledData is the payload for a ticket.canceled event.
type TicketCanceledData struct {
	TicketUID       string `json:"ticket_uid"`
	Username        string `json:"username"`
	FlightNumber    string `json:"flight_number"`
	BonusesRefunded bool   `json:"bonuses_refunded"`
}

// CompensationFailedData is the payload for a booking.compensation-failed
// event. It records which saga step could not be undone so reconciliation
// tooling can repair the stranded state.
type CompensationFailedData struct {
	TicketUID string `json:"ticket_uid"`
	Username  string `json:"username"`
	Saga      string `json:"saga"`
	Step      string `json:"step"`
	Reason    string `json:"reason"`
}

// Producer publishes booking domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the booking gateway.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// enrich stamps the request correlation ID and acting username onto an event
// so consumers can tie it back to the originating gateway request.
func enrich(ctx context.Context, ev *pkgkafka.Event, username string) *pkgkafka.Event {
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		ev.WithCorrelationID(cid)
	}
	if username != "" {
		ev.WithMetadata("username", username)
	}
	return ev
}

// PublishTicketPurchased publishes a ticket.purchased event.
func (p *Producer) PublishTicketPurchased(ctx context.Context, result *domain.PurchaseResult, username string) error {
	data := TicketPurchasedData{
		TicketUID:     result.TicketUID,
		Username:      username,
		FlightNumber:  result.FlightNumber,
		Price:         result.Price,
		PaidByMoney:   result.PaidByMoney,
		PaidByBonuses: result.PaidByBonuses,
	}

	event, err := pkgkafka.NewEvent(TopicTicketPurchased, result.TicketUID, AggregateTypeTicket, SourceBookingGateway, data)
	if err != nil {
		return fmt.Errorf("create ticket.purchased event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTicketPurchased, enrich(ctx, event, username)); err != nil {
		return fmt.Errorf("publish ticket.purchased event: %w", err)
	}

	p.logger.DebugContext(ctx, "published ticket.purchased event",
		slog.String("ticket_uid", result.TicketUID),
		slog.String("username", username),
	)

	return nil
}

// PublishTicketCanceled publishes a ticket.canceled event.
func (p *Producer) PublishTicketCanceled(ctx context.Context, ticket *domain.Ticket, bonusesRefunded bool) error {
	data := TicketCanceledData{
		TicketUID:       ticket.TicketUID,
		Username:        ticket.Username,
		FlightNumber:    ticket.FlightNumber,
		BonusesRefunded: bonusesRefunded,
	}

	event, err := pkgkafka.NewEvent(TopicTicketCanceled, ticket.TicketUID, AggregateTypeTicket, SourceBookingGateway, data)
	if err != nil {
		return fmt.Errorf("create ticket.canceled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTicketCanceled, enrich(ctx, event, ticket.Username)); err != nil {
		return fmt.Errorf("publish ticket.canceled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published ticket.canceled event",
		slog.String("ticket_uid", ticket.TicketUID),
	)

	return nil
}

// PublishCompensationFailed publishes a booking.compensation-failed event.
// These events feed the reconciliation queue: each one represents real,
// lasting inconsistency across the leaf services.
func (p *Producer) PublishCompensationFailed(ctx context.Context, ticketUID, username, saga, step, reason string) error {
	data := CompensationFailedData{
		TicketUID: ticketUID,
		Username:  username,
		Saga:      saga,
		Step:      step,
		Reason:    reason,
	}

	event, err := pkgkafka.NewEvent(TopicCompensationFailed, ticketUID, AggregateTypeTicket, SourceBookingGateway, data)
	if err != nil {
		return fmt.Errorf("create compensation-failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCompensationFailed, enrich(ctx, event, username)); err != nil {
		return fmt.Errorf("publish compensation-failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published compensation-failed event",
		slog.String("ticket_uid", ticketUID),
		slog.String("saga", saga),
		slog.String("step", step),
	)

	return nil
}
