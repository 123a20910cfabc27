/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /health               Liveness
  /metrics              Prometheus scrape endpoint
  /api/employees        Employee self-registration (open)
  /api/users/*          Authentication (open)
  /api/customers/*      Customer management (authenticated)
  /api/accounts/*       Accounts and balance operations (authenticated)

SEE ALSO:
  - handlers.go: Handler implementations and caller authentication
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/retail-ledger/bank"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type",
			HeaderActorID, HeaderActorKind, HeaderActorFirstName,
		},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	employee := h.RequireActor(bank.KindEmployee)
	customer := h.RequireActor(bank.KindCustomer)
	anyone := h.RequireActor()

	r.Route("/api", func(r chi.Router) {
		r.Post("/employees", h.CreateEmployee)
		r.Post("/users/{id}/authenticate", h.Authenticate)

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.With(employee).Post("/", h.CreateCustomer)
			r.With(anyone).Get("/{id}/accounts", h.ListAccounts)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.With(employee).Post("/", h.AddAccount)

			r.Route("/{acctNo}", func(r chi.Router) {
				r.With(anyone).Get("/resolve", h.ResolveAccount)
				r.With(anyone).Get("/balance", h.GetBalance)
				r.With(anyone).Post("/deposit", h.Deposit)
				r.With(customer).Post("/withdraw", h.Withdraw)
				r.With(customer).Post("/pay", h.Pay)
				r.With(employee).Get("/audit", h.GetAuditTrail)
			})
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
