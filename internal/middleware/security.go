package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "pitalign/internal/errors"
	"pitalign/internal/security"
)

// APIKeyHeader carries the client's API key
const APIKeyHeader = "X-API-Key"

type apiClientKey struct{}

// APIKeyAuth rejects requests without a known X-API-Key. A nil or empty
// verifier disables the check.
func APIKeyAuth(logger *slog.Logger, keys *security.KeyVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !keys.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				logger.WarnContext(ctx, "missing API key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, r, "API key required")
				return
			}

			clientName, ok := keys.Verify(apiKey)
			if !ok {
				logger.WarnContext(ctx, "invalid API key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, r, "Invalid API key")
				return
			}

			ctx = context.WithValue(ctx, apiClientKey{}, clientName)
			logger.DebugContext(ctx, "API key authentication successful",
				"client", clientName,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIClient returns the authenticated client name, if any
func APIClient(ctx context.Context) string {
	name, _ := ctx.Value(apiClientKey{}).(string)
	return name
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `APIKey header="`+APIKeyHeader+`"`)
	render.Render(w, r, apperrors.NewProblemDetails(
		http.StatusUnauthorized,
		"/errors/unauthorized",
		"Unauthorized",
		detail,
		r.URL.Path,
	).WithExtension("trace_id", GetRequestID(r.Context())))
}
