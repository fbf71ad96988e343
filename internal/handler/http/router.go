package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelora/skybook/internal/service"
	"github.com/avelora/skybook/pkg/health"
	"github.com/avelora/skybook/pkg/middleware"
)

// RouterConfig holds the router's middleware configuration.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string

	// FlightCacheMaxAge is the Cache-Control max-age (seconds) for the flight
	// catalog listing. The catalog is immutable per entry, so responses can be
	// cached at the edge.
	FlightCacheMaxAge int
}

// NewRouter creates a chi router with all booking gateway routes registered.
func NewRouter(
	bookingService *service.BookingService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Identity())
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Booking API endpoints
	bookingHandler := NewBookingHandler(bookingService, logger)

	r.Route("/api/v1/flights", func(r chi.Router) {
		if cfg.FlightCacheMaxAge > 0 {
			r.Use(middleware.CacheControl(cfg.FlightCacheMaxAge))
		}
		r.Get("/", bookingHandler.ListFlights)
	})

	r.Route("/api/v1/tickets", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore())
		r.Use(middleware.RequireUser())

		r.Post("/", bookingHandler.PurchaseTicket)
		r.Get("/", bookingHandler.ListTickets)
		r.Get("/{ticketUid}", bookingHandler.GetTicket)
		r.Delete("/{ticketUid}", bookingHandler.CancelTicket)
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.NoStore())
		r.Use(middleware.RequireUser())
		r.Get("/", bookingHandler.GetProfile)
	})

	r.Route("/api/v1/privilege", func(r chi.Router) {
		r.Use(middleware.NoStore())
		r.Use(middleware.RequireUser())
		r.Get("/", bookingHandler.GetPrivilege)
	})

	return r
}
