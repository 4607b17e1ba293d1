package handler

import (
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"go.uber.org/zap"
)

// ============================================================
// Autenticação
// ============================================================

func registerHandler(authSvc *service.AuthService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/register")
		defer span.End()

		var req domain.RegisterRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := authSvc.Register(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func loginHandler(authSvc *service.AuthService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func meHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/auth/me")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		u, err := authSvc.Me(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

func changePasswordHandler(authSvc *service.AuthService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/auth/password")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.ChangePasswordRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := authSvc.ChangePassword(ctx, uid, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Senha alterada com sucesso"})
	}
}

func requestVerificationHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/verify-email/request")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		resp, err := authSvc.RequestEmailVerification(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmEmailHandler(authSvc *service.AuthService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/verify-email/confirm")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.VerifyEmailRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		u, err := authSvc.ConfirmEmail(ctx, uid, req.Code)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "E-mail verificado", "user": u})
	}
}
