package handler

import (
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"go.uber.org/zap"
)

// ============================================================
// Empresa
// ============================================================

func getCompanyHandler(companySvc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/company")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		c, err := companySvc.Get(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, c)
	}
}

func createCompanyHandler(companySvc *service.CompanyService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/company")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.CompanyRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := companySvc.Create(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, c)
	}
}

func updateCompanyHandler(companySvc *service.CompanyService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/company")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		var req domain.CompanyRequest
		if err := decode(r, v, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := companySvc.Update(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, c)
	}
}
