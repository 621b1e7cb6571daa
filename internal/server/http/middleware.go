package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Authenticator checks bearer access tokens.
type Authenticator interface {
	ValidateAccess(token string) error
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// newRequestMiddleware logs every request and reports it to m under its
// chi route pattern, so path parameters do not explode the label set.
func newRequestMiddleware(logger logging.Logger, m metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.HTTPRequest(r.Method, route, rec.status, elapsed)
			logger.Info(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// requireAuth admits requests carrying a valid access token of an active
// member and stores the member's Principal in the request context.
func requireAuth(a Authenticator, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, missingToken, "")
				return
			}
			if err := a.ValidateAccess(token); err != nil {
				handleServiceError(r.Context(), w, err, logger)
				return
			}
			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				handleServiceError(r.Context(), w, err, logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// bearerToken extracts the token from the Authorization header. The
// "Bearer " prefix is optional; provider tokens are often sent bare.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	if len(h) >= len(common.BearerPrefix) && strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		h = h[len(common.BearerPrefix):]
	}
	return strings.TrimSpace(h)
}

func withPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the member authenticated by requireAuth.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}
