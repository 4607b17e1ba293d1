package handler

import (
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"go.uber.org/zap"
)

// ============================================================
// Onboarding
// ============================================================

func onboardingProgressHandler(onboardingSvc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/onboarding/progress")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		p, err := onboardingSvc.Progress(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func businessInfoHandler(onboardingSvc *service.OnboardingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/onboarding/business-info")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.BusinessInfoRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := onboardingSvc.BusinessInfo(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Dados da empresa salvos", "company": c})
	}
}

func whatsappNumberHandler(onboardingSvc *service.OnboardingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/onboarding/whatsapp-number")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.NumberRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		n, err := onboardingSvc.WhatsAppNumber(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Número reservado", "number": n})
	}
}

func metaBusinessHandler(onboardingSvc *service.OnboardingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/onboarding/meta-business")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.MetaBusinessRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := onboardingSvc.MetaBusiness(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Meta Business vinculado", "company": c})
	}
}

func automationSetupHandler(onboardingSvc *service.OnboardingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/onboarding/automation-setup")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.AutomationSetupRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := onboardingSvc.AutomationSetup(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Automação configurada", "company": c})
	}
}

func completeOnboardingHandler(onboardingSvc *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/onboarding/complete")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		resp, err := onboardingSvc.Complete(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func dashboardHandler(dashboardSvc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		d, err := dashboardSvc.Get(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, d)
	}
}
