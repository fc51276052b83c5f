package handler

import (
	"net/http"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/infra/observability"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except /v1/auth requires a valid access token.
func NewRouter(finSvc *service.FinanceService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(finSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Authentication (public except logout)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))
			r.Post("/refresh", authRefreshHandler(authSvc, logger))
			r.Post("/logout", authLogoutHandler(authSvc, logger))
		})

		// Everything else is protected.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			// Accounts
			r.Get("/accounts", listAccountsHandler(finSvc, logger))
			r.Post("/accounts", createAccountHandler(finSvc, logger))
			r.Get("/accounts/{accountId}", getAccountHandler(finSvc, logger))
			r.Patch("/accounts/{accountId}", updateAccountHandler(finSvc, logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(finSvc, logger))
			r.Get("/accounts/{accountId}/summary", accountSummaryHandler(finSvc, logger))
			r.Get("/accounts/{accountId}/balance", accountBalanceHandler(finSvc, logger))
			r.Get("/accounts/{accountId}/history", accountHistoryHandler(finSvc, logger))

			// Bills
			r.Get("/bills", listBillsHandler(finSvc, logger))
			r.Post("/bills", createBillHandler(finSvc, logger))
			r.Get("/bills/{billId}", getBillHandler(finSvc, logger))
			r.Patch("/bills/{billId}", updateBillHandler(finSvc, logger))
			r.Delete("/bills/{billId}", deleteBillHandler(finSvc, logger))
			r.Post("/bills/{billId}/pause", billActionHandler(finSvc, logger, "pause"))
			r.Post("/bills/{billId}/end", billActionHandler(finSvc, logger, "end"))
			r.Post("/bills/{billId}/resume", billActionHandler(finSvc, logger, "resume"))
			r.Post("/bills/{billId}/pay", payBillHandler(finSvc, logger))
			r.Post("/bills/{billId}/mark-paid", billActionHandler(finSvc, logger, "mark-paid"))
			r.Post("/bills/{billId}/unpay", billActionHandler(finSvc, logger, "unpay"))
			r.Get("/bills/{billId}/payments", listBillPaymentsHandler(finSvc, logger))
			r.Get("/payments", listBillPaymentsHandler(finSvc, logger))

			// Demo data
			r.Post("/demo/seed", seedDemoHandler(finSvc, logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "octopus-api", Status: "healthy", LatencyMs: 0, UptimePercent: 99.99, LastChecked: now},
		}

		start := time.Now()
		err := finSvc.HealthCheck(ctx)
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name: "supabase", Status: status, LatencyMs: latency,
			UptimePercent: 99.9, LastChecked: now,
		})

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
