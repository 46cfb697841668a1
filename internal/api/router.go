/**
 * @description
 * HTTP router setup for the commission service using go-chi/chi.
 */
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/temi-crm/commission-service/internal/domain"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterOptions configure NewRouter.
type RouterOptions struct {
	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins []string
	Health         HealthChecker
	Logger         zerolog.Logger
}

// NewRouter creates a new Chi router and registers commission routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health.Ping(r.Context()); err != nil {
				respondWithError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/internal/jobs", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Post("/overdue/run", h.handleRunOverdueJob)
		r.Post("/tier-snapshots/run", h.handleRunTierSnapshotJob)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(opts.JWTSecret))

		r.With(RequirePermission("view tiers", func(p domain.Permissions) bool { return p.ViewTiers })).
			Get("/commission-tiers", h.handleListTiers)
		r.Get("/mandataries/{id}/production", h.handleProductionSummary)

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.handleListCommissions)
			r.Get("/{id}", h.handleGetCommission)

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission("simulate", func(p domain.Permissions) bool { return p.Simulate }))
				r.Post("/calculate", h.handleCalculate)
				r.Post("/simulate", h.handleSimulate)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission("manage commissions", func(p domain.Permissions) bool { return p.ManageCommissions }))
				r.Post("/{id}/invoice", h.handleIssueCommissionInvoice)
				r.Post("/{id}/pay", h.handleMarkCommissionPaid)
				r.Post("/{id}/cancel", h.handleCancelCommission)
			})
		})

		r.With(RequirePermission("manage commissions", func(p domain.Permissions) bool { return p.ManageCommissions })).
			Post("/projects/{id}/commissions", h.handleCreateProjectCommission)

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.handleListInvoices)
			r.Get("/{id}", h.handleGetInvoice)

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission("manage invoices", func(p domain.Permissions) bool { return p.ManageInvoices }))
				r.Post("/", h.handleCreateInvoice)
				r.Post("/{id}/issue", h.handleIssueInvoice)
				r.Post("/{id}/send", h.handleSendInvoice)
				r.Post("/{id}/cancel", h.handleCancelInvoice)
				r.Post("/{id}/payments", h.handleRecordPayment)
			})
		})
	})

	return r
}
