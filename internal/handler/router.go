package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/card-advisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// A nil tokens disables service authentication on /v1.
func NewRouter(
	confirmSvc *service.ConfirmationService,
	cardSvc *service.CardService,
	tokens *service.TokenService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(cardSvc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if tokens != nil {
			r.Use(ServiceAuthMiddleware(tokens, logger))
		}

		// =============================================
		// 1. Purchase confirmation
		// =============================================
		r.Route("/chats/{chatId}/users/{userId}/pending", func(r chi.Router) {
			r.Put("/", beginPurchaseHandler(confirmSvc, logger))
			r.Get("/", getPendingHandler(confirmSvc, logger))
			r.Post("/confirm", confirmHandler(confirmSvc, logger))
			r.Post("/confirm-anyway", confirmAnywayHandler(confirmSvc, logger))
			r.Post("/cancel", cancelHandler(confirmSvc, logger))
		})

		// =============================================
		// 2. Billing cycles
		// =============================================
		r.Get("/cards/ranking", rankingHandler(cardSvc, logger))
		r.Get("/cards/{cardId}/window", windowHandler(cardSvc, logger))

		// =============================================
		// 3. Advisor metrics
		// =============================================
		r.Get("/metrics/advisor", advisorMetricsHandler(confirmSvc, metrics))
	})

	return r
}

func healthzHandler(cardSvc *service.CardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "advisor-api", Status: "healthy", LastChecked: now},
		}

		if cardSvc != nil {
			catalog := domain.ServiceHealth{Name: "catalog", Status: "healthy", LastChecked: now}
			n := cardSvc.CatalogSize()
			catalog.Detail = fmt.Sprintf("%d cards", n)
			if n == 0 {
				// Without cycles every purchase commits without advice.
				catalog.Status = "degraded"
			}
			services = append(services, catalog)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func advisorMetricsHandler(confirmSvc *service.ConfirmationService, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAdvisorSnapshot(confirmSvc.PendingCount()))
	}
}
