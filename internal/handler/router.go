package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const readinessTimeout = 2 * time.Second

// HealthCheck is a dependency probed by /readyz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps groups the services the router dispatches to.
type Deps struct {
	Auth       *service.AuthService
	Companies  *service.CompanyService
	Profile    *service.ProfileService
	Onboarding *service.OnboardingService
	Billing    *service.BillingService
	Numbering  *service.NumberingService
	Dashboard  *service.DashboardService
	Validator  *validation.Validator
	Checks     []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	v := deps.Validator

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(deps.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {

		// =============================================
		// Public
		// =============================================
		r.Post("/auth/register", registerHandler(deps.Auth, v, logger))
		r.Post("/auth/login", loginHandler(deps.Auth, v, logger))
		r.Get("/plans", listPlansHandler(deps.Billing))
		r.Post("/stripe/webhook", webhookHandler(deps.Billing, logger))
		r.Get("/metrics/onboarding", onboardingMetricsHandler(metrics))

		// =============================================
		// Authenticated
		// =============================================
		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(JWTAuthMiddleware(deps.Auth.Tokens(), logger))
			}

			// --- Auth ---
			r.Get("/auth/me", meHandler(deps.Auth, logger))
			r.Put("/auth/password", changePasswordHandler(deps.Auth, v, logger))
			r.Post("/auth/verify-email/request", requestVerificationHandler(deps.Auth, logger))
			r.Post("/auth/verify-email/confirm", confirmEmailHandler(deps.Auth, v, logger))

			// --- Company ---
			r.Get("/company", getCompanyHandler(deps.Companies, logger))
			r.Post("/company", createCompanyHandler(deps.Companies, v, logger))
			r.Put("/company", updateCompanyHandler(deps.Companies, v, logger))

			// --- User ---
			r.Get("/user/profile", getProfileHandler(deps.Profile, logger))
			r.Put("/user/profile", updateProfileHandler(deps.Profile, v, logger))
			r.Get("/user/settings", getSettingsHandler(deps.Profile, logger))
			r.Put("/user/settings", updateSettingsHandler(deps.Profile, v, logger))
			r.Get("/user/onboarding-status", legacyOnboardingHandler(deps.Onboarding, logger))

			// --- Onboarding ---
			r.Get("/onboarding/progress", onboardingProgressHandler(deps.Onboarding, logger))
			r.Post("/onboarding/business-info", businessInfoHandler(deps.Onboarding, v, logger))
			r.Post("/onboarding/whatsapp-number", whatsappNumberHandler(deps.Onboarding, v, logger))
			r.Post("/onboarding/meta-business", metaBusinessHandler(deps.Onboarding, v, logger))
			r.Post("/onboarding/automation-setup", automationSetupHandler(deps.Onboarding, v, logger))
			r.Post("/onboarding/complete", completeOnboardingHandler(deps.Onboarding, logger))

			// --- Billing ---
			r.Post("/payment/create-intent", createIntentHandler(deps.Billing, v, logger))
			r.Post("/stripe/create-checkout-session", createCheckoutHandler(deps.Billing, v, logger))
			r.Post("/subscription/start-trial", startTrialHandler(deps.Billing, v, logger))
			r.Post("/subscription/activate", activateHandler(deps.Billing, v, logger))
			r.Post("/subscription/cancel", cancelSubscriptionHandler(deps.Billing, v, logger))
			r.Get("/subscription/status", subscriptionStatusHandler(deps.Billing, logger))

			// --- Numbering (BRDID) ---
			r.Get("/brdid/localidades", listLocalitiesHandler(deps.Numbering, logger))
			r.Get("/brdid/numeros", listNumbersHandler(deps.Numbering, logger))
			r.Get("/brdid/meus-numeros", myNumbersHandler(deps.Numbering, logger))
			r.Post("/brdid/reservar", reserveNumberHandler(deps.Numbering, v, logger))
			r.Post("/brdid/adquirir", acquireNumberHandler(deps.Numbering, v, logger))
			r.Delete("/brdid/numeros/{numero}", cancelNumberHandler(deps.Numbering, logger))

			// --- Dashboard ---
			r.Get("/dashboard", dashboardHandler(deps.Dashboard, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status: "healthy",
			Services: []domain.ServiceHealth{
				{Name: "atendimento-api", Status: "healthy", LastChecked: time.Now().Format(time.RFC3339)},
			},
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		now := time.Now().Format(time.RFC3339)
		services := make([]domain.ServiceHealth, 0, len(checks))
		overall := "healthy"

		for _, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			h := domain.ServiceHealth{
				Name:        c.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("readiness check failed", zap.String("dependency", c.Name), zap.Error(err))
				h.Status = "unhealthy"
				h.Error = err.Error()
				overall = "unhealthy"
			}
			services = append(services, h)
		}

		status := http.StatusOK
		if overall != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{Status: overall, Services: services})
	}
}

func onboardingMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOnboardingSnapshot())
	}
}
