package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/avelora/skybook/pkg/config"
)

// Config holds all configuration for the booking gateway.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	// Leaf service URLs for saga orchestration
	FlightServiceURL    string `env:"FLIGHT_SERVICE_URL" envDefault:"http://localhost:8060"`
	TicketServiceURL    string `env:"TICKET_SERVICE_URL" envDefault:"http://localhost:8070"`
	PrivilegeServiceURL string `env:"PRIVILEGE_SERVICE_URL" envDefault:"http://localhost:8050"`

	// Redis (flight catalog cache)
	RedisHost          string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	FlightCacheTTLSecs int    `env:"FLIGHT_CACHE_TTL_SECONDS" envDefault:"300"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker settings for leaf service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Per-step saga timeouts (seconds). Each saga step gets its own
	// context.WithTimeout to prevent a slow leaf from blocking the whole
	// purchase indefinitely. The compensation timeout bounds compensating
	// calls, which run detached from the inbound request.
	SagaFlightTimeout       int `env:"SAGA_FLIGHT_TIMEOUT" envDefault:"5"`
	SagaTicketTimeout       int `env:"SAGA_TICKET_TIMEOUT" envDefault:"5"`
	SagaPrivilegeTimeout    int `env:"SAGA_PRIVILEGE_TIMEOUT" envDefault:"5"`
	SagaCompensationTimeout int `env:"SAGA_COMPENSATION_TIMEOUT" envDefault:"10"`

	// Edge cache lifetime for the flight catalog listing (seconds)
	FlightCacheControlMaxAge int `env:"FLIGHT_CACHE_CONTROL_MAX_AGE" envDefault:"60"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables. Validation runs as
// part of loading via the pkg/config Validator hook.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants the env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	// Validate leaf service URLs for saga orchestration.
	for name, rawURL := range map[string]string{
		"FLIGHT_SERVICE_URL":    c.FlightServiceURL,
		"TICKET_SERVICE_URL":    c.TicketServiceURL,
		"PRIVILEGE_SERVICE_URL": c.PrivilegeServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}
