/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     zap request log (method, path, status, duration, request_id)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the HR frontend

ROUTE GROUPS:
  /api/punches/*        Punch import
  /api/records/*        Record views, status changes, export
  /api/violations       Users needing review
  /api/summaries/*      Weekly buckets
  /api/calibrate        Compliance calibration
  /api/policies/*       Policy management
  /api/holidays/*       Holiday calendar
  /api/synthesis/*      Preview, commit, discard
  /api/scans            Anomaly scans
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string, logger *zap.Logger) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/punches/import", h.ImportPunches)

		// Record routes
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Get("/export", h.ExportRecords)
			r.Delete("/{id}", h.DeleteRecord)
			r.Post("/{id}/status", h.ChangeStatus)
		})
		r.Get("/violations", h.ListViolations)

		// Summary routes
		r.Route("/summaries", func(r chi.Router) {
			r.Get("/weekly", h.WeeklySummaries)
			r.Get("/weekly/export", h.ExportWeeklySummaries)
		})
		r.Post("/calibrate", h.Calibrate)

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/resolve", h.ResolvePolicy)
			r.Delete("/{id}", h.DeletePolicy)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Synthesis routes
		r.Route("/synthesis", func(r chi.Router) {
			r.Post("/preview", h.CreatePreview)
			r.Get("/{id}", h.GetPreview)
			r.Post("/{id}/commit", h.CommitPreview)
			r.Post("/{id}/discard", h.DiscardPreview)
		})

		// Scan routes
		r.Route("/scans", func(r chi.Router) {
			r.Get("/", h.ListScans)
			r.Post("/", h.RunScan)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
