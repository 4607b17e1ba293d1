package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"go.uber.org/zap"
)

const maxWebhookBytes = 65536

// ============================================================
// Planos, pagamento e assinatura
// ============================================================

func listPlansHandler(billingSvc *service.BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /api/plans")
		defer span.End()

		writeJSON(w, http.StatusOK, map[string]any{"plans": billingSvc.ListPlans()})
	}
}

func createIntentHandler(billingSvc *service.BillingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/payment/create-intent")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.CreateIntentRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		pi, err := billingSvc.CreatePaymentIntent(ctx, uid, req.PlanID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, pi)
	}
}

func createCheckoutHandler(billingSvc *service.BillingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/stripe/create-checkout-session")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.CreateCheckoutRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		sess, err := billingSvc.CreateCheckoutSession(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID, "url": sess.URL})
	}
}

// webhookHandler needs the raw body: the signature covers the exact bytes.
func webhookHandler(billingSvc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/stripe/webhook")
		defer span.End()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("webhook body over limit", zap.Int64("limit", tooLarge.Limit))
				writeError(w, http.StatusRequestEntityTooLarge, "Corpo da requisição muito grande")
				return
			}
			writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
			return
		}

		ack, err := billingSvc.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, ack)
	}
}

func startTrialHandler(billingSvc *service.BillingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/subscription/start-trial")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.StartTrialRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		sub, err := billingSvc.StartTrial(ctx, uid, req.PlanID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"message": "Período de teste iniciado", "subscription": sub})
	}
}

func activateHandler(billingSvc *service.BillingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/subscription/activate")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.ActivateRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := billingSvc.Activate(ctx, uid, req.SessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func cancelSubscriptionHandler(billingSvc *service.BillingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/subscription/cancel")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.CancelRequest
		if err := decodeOptional(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		sub, err := billingSvc.Cancel(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Assinatura cancelada", "subscription": sub})
	}
}

func subscriptionStatusHandler(billingSvc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/subscription/status")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		st, err := billingSvc.Status(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, st)
	}
}
