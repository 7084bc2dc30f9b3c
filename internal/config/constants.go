package config

import "time"

// Application constants
const (
	AppName    = "pitalign"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. PITALIGN_SERVER_PORT.
	EnvPrefix = "PITALIGN"

	// Rate limiting of the align endpoint
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// Request handling
	DefaultRequestTimeout = 2 * time.Minute
	DefaultMaxBodyBytes   = 32 << 20

	// CompressionLevel is the gzip level for API responses
	CompressionLevel = 5

	DefaultDataDir   = "data"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API routes
	APIBasePath     = "/api/v1"
	AlignEndpoint   = "/api/v1/align"
	FeedsEndpoint   = "/api/v1/feeds"
	HealthEndpoint  = "/healthz"
	ReadyEndpoint   = "/readyz"
	MetricsEndpoint = "/metrics"
)
