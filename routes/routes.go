package routes

import (
	"net/http"
	"time"

	"github.com/glazeworks/actiongate/app"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all gate routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleLiveness)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes (all require a delegation token)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireActor)

		r.Get("/capabilities", deps.GateHandler.HandleListCapabilities)

		r.Route("/proposals", func(r chi.Router) {
			r.Post("/", deps.GateHandler.HandleCreateProposal)
			r.Get("/{id}", deps.GateHandler.HandleGetProposal)
			r.Post("/{id}/approve", deps.GateHandler.HandleApproveProposal)
			r.Post("/{id}/reject", deps.GateHandler.HandleRejectProposal)
			r.Post("/{id}/evaluate", deps.GateHandler.HandleEvaluateExecution)
			r.Post("/{id}/executions", deps.GateHandler.HandleReportExecution)
		})

		r.Get("/audit/recent", deps.GateHandler.HandleListRecentAudit)
		r.Post("/killswitch", deps.GateHandler.HandleSetKillSwitch)
	})

	return r
}
