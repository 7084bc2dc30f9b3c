// Package http exposes the alignment feeds over a chi router. Handlers stay
// thin: they decode and validate the request, call into the feeds package
// and render the result.
//
// # Routes
//
//	GET  /healthz                liveness
//	GET  /readyz                 503 until a fact source with data is attached
//	GET  /metrics                Prometheus scrape endpoint
//	GET  /api/v1/version         build information
//	GET  /api/v1/feeds           feed catalogue
//	GET  /api/v1/feeds/{feed}    one feed's schema and options
//	POST /api/v1/align/{feed}    align a feed onto a target calendar
//
// # Align Requests
//
//	{
//	    "calendar": {
//	        "dates": ["2018-05-01", "2018-05-02"],
//	        "timezone": "America/New_York",
//	        "entities": ["FI12345"]
//	    },
//	    "params": {"shift": 1, "max_lag": "5D"}
//	}
//
// The response is the aligned result as JSON. Clients that send
// Accept: text/csv or ?format=csv get long-format CSV instead.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details. Alignment errors map to
// dedicated problem types:
//
//	PARAMETER               400 /errors/alignment/parameter
//	MISSING_REFERENCE_DATA  422 /errors/alignment/missing-reference-data
//	AMBIGUOUS_TIMEZONE      422 /errors/alignment/ambiguous-timezone
//	NO_FACT_DATA            404 /errors/alignment/no-fact-data
//
// # Middleware
//
// Every request passes through RequestID, RealIP, OpenTelemetry, structured
// logging, panic recovery, security headers and CORS. The /api/v1 subtree
// additionally checks X-API-Key against the configured scrypt hashes and
// gzips JSON and CSV for clients that accept it; align calls are rate
// limited, size limited and bounded by the request timeout.
package http
