// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package web serves the account HTTP API.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/playgate/playgate/internal/observability"
)

// DefaultRequestTimeout bounds each request, store calls included.
const DefaultRequestTimeout = 15 * time.Second

// RouterParams groups the dependencies of the HTTP router.
type RouterParams struct {
	Service AuthService
	Logger  *slog.Logger
	// Metrics may be nil.
	Metrics *observability.Metrics
	// LoginLimit is the number of login requests allowed per client IP per
	// minute. Zero disables the limit.
	LoginLimit     int
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with the middleware stack and routes.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(instrument(logger, params.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(secureMiddleware.Handler)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, Problem{Title: http.StatusText(http.StatusNotFound), Status: http.StatusNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, Problem{Title: http.StatusText(http.StatusMethodNotAllowed), Status: http.StatusMethodNotAllowed})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	})

	var loginLimit func(http.Handler) http.Handler
	if params.LoginLimit > 0 {
		loginLimit = httprate.Limit(params.LoginLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeProblem(w, Problem{
					Title:  http.StatusText(http.StatusTooManyRequests),
					Status: http.StatusTooManyRequests,
					Detail: "too many login attempts",
				})
			}))
	}

	h := NewHandler(params.Service, logger, params.Metrics)
	r.Route("/api/user", func(r chi.Router) {
		h.MountRoutes(r, loginLimit)
	})

	return r
}

// instrument records request metrics and logs each request at debug level.
func instrument(logger *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			elapsed := time.Since(start)

			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
				metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
			}
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration", elapsed,
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
