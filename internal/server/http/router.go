// Package http serves the membership API over chi. Every response uses
// the same envelope of HTTP status, API code, message and data.
package http

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps are the collaborators of the HTTP API. Images and
// MetricsHandler are optional. TrustProxyHeaders takes the client address
// from X-Forwarded-For and X-Real-IP; set it only behind a proxy that
// overwrites those headers, since the rate limiter keys on that address.
type RouterDeps struct {
	Members        Members
	Images         ProfileImages
	Auth           Authenticator
	Limiter        *RateLimiter
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	Logger         logging.Logger
	AllowedOrigins []string

	TrustProxyHeaders bool
}

// NewRouter wires the membership routes and middleware.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if d.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"WWW-Authenticate", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newRequestMiddleware(d.Logger, d.Metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	h := NewMemberHandler(d.Members, d.Images, d.Logger)

	r.Group(func(r chi.Router) {
		r.Use(d.Limiter.Middleware("login"))
		for _, prefix := range []string{"/oauth/{provider}", "/login/oauth2/code/{provider}"} {
			r.Get(prefix, h.Callback)
			r.Post(prefix, h.Login)
		}
	})

	r.With(d.Limiter.Middleware("refresh")).Post("/auth/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(d.Auth, d.Logger))
		r.Post("/additional-info", h.CompleteSignUp)
		r.Post("/nickname", h.Nickname)
		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/quit", h.Quit)
		r.Route("/mypage", func(r chi.Router) {
			r.Get("/", h.MyPage)
			r.Post("/introduction", h.Introduction)
			r.Get("/profileImg", h.ProfileImage)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, responseType{http.StatusNotFound, 40400, "not found"}, "")
	})

	return r
}
