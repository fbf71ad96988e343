package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avelora/skybook/internal/service"
	"github.com/avelora/skybook/pkg/httputil"
	"github.com/avelora/skybook/pkg/middleware"
	"github.com/avelora/skybook/pkg/pagination"
	"github.com/avelora/skybook/pkg/validator"
)

// BookingHandler handles HTTP requests for the booking gateway endpoints.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// PurchaseTicketRequest is the JSON request body for purchasing a ticket.
type PurchaseTicketRequest struct {
	FlightNumber    string `json:"flightNumber" validate:"required,flight_number"`
	Price           int    `json:"price" validate:"required,gt=0"`
	PaidFromBalance bool   `json:"paidFromBalance"`
}

// --- Handlers ---

// ListFlights handles GET /api/v1/flights
// @Summary List flights
// @Description Returns one page of the flight catalog.
// @Tags flights
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/flights [get]
func (h *BookingHandler) ListFlights(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	page, err := h.service.ListFlights(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: page})
}

// PurchaseTicket handles POST /api/v1/tickets
// @Summary Purchase a ticket
// @Description Runs the purchase saga: creates the ticket and debits bonus points.
// @Tags tickets
// @Accept json
// @Produce json
// @Param X-User-Name header string true "Authenticated username"
// @Param request body PurchaseTicketRequest true "Purchase data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/tickets [post]
func (h *BookingHandler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req PurchaseTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.PurchaseTicket(r.Context(), username, &service.PurchaseInput{
		FlightNumber:    req.FlightNumber,
		Price:           req.Price,
		PaidFromBalance: req.PaidFromBalance,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ListTickets handles GET /api/v1/tickets
// @Summary List the user's tickets
// @Description Returns the caller's tickets enriched with flight details.
// @Tags tickets
// @Produce json
// @Param X-User-Name header string true "Authenticated username"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/tickets [get]
func (h *BookingHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	tickets, err := h.service.ListUserTickets(r.Context(), username)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tickets})
}

// GetTicket handles GET /api/v1/tickets/{ticketUid}
// @Summary Get a single ticket
// @Description Returns one of the caller's tickets by its UID.
// @Tags tickets
// @Produce json
// @Param ticketUid path string true "Ticket UUID"
// @Param X-User-Name header string true "Authenticated username"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/tickets/{ticketUid} [get]
func (h *BookingHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	ticketUID, ok := httputil.ParseUUID(w, chi.URLParam(r, "ticketUid"))
	if !ok {
		return
	}

	ticket, err := h.service.GetUserTicket(r.Context(), username, ticketUID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ticket})
}

// CancelTicket handles DELETE /api/v1/tickets/{ticketUid}
// @Summary Cancel a ticket
// @Description Runs the cancellation saga: deletes the ticket and refunds any bonus debit.
// @Tags tickets
// @Produce json
// @Param ticketUid path string true "Ticket UUID"
// @Param X-User-Name header string true "Authenticated username"
// @Success 204
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/tickets/{ticketUid} [delete]
func (h *BookingHandler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	ticketUID, ok := httputil.ParseUUID(w, chi.URLParam(r, "ticketUid"))
	if !ok {
		return
	}

	if err := h.service.CancelTicket(r.Context(), username, ticketUID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProfile handles GET /api/v1/me
// @Summary Get the user's profile
// @Description Returns the caller's tickets and privilege snapshot in one response.
// @Tags profile
// @Produce json
// @Param X-User-Name header string true "Authenticated username"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/me [get]
func (h *BookingHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	profile, err := h.service.GetUserProfile(r.Context(), username)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: profile})
}

// GetPrivilege handles GET /api/v1/privilege
// @Summary Get the user's privilege account
// @Description Returns the caller's bonus balance, tier, and operation history.
// @Tags privilege
// @Produce json
// @Param X-User-Name header string true "Authenticated username"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/privilege [get]
func (h *BookingHandler) GetPrivilege(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	info, err := h.service.GetPrivilegeInfo(r.Context(), username)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: info})
}
