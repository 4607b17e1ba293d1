package handler

import (
	"net/http"
	"strconv"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Numeração (BRDID)
// ============================================================

func listLocalitiesHandler(numberingSvc *service.NumberingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/brdid/localidades")
		defer span.End()

		locs, err := numberingSvc.ListLocalities(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"localidades": locs, "total": len(locs)})
	}
}

func listNumbersHandler(numberingSvc *service.NumberingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/brdid/numeros")
		defer span.End()

		cn := r.URL.Query().Get("cn")
		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				handleServiceError(w, &domain.ErrValidation{Field: "limit", Message: "limit deve ser um inteiro positivo"}, logger)
				return
			}
			limit = n
		}
		span.SetAttributes(attribute.String("numbering.cn", cn))

		nums, err := numberingSvc.ListNumbers(ctx, cn, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"numeros": nums, "total": len(nums)})
	}
}

func myNumbersHandler(numberingSvc *service.NumberingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/brdid/meus-numeros")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		nums, err := numberingSvc.Numbers(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"numeros": nums, "total": len(nums)})
	}
}

func reserveNumberHandler(numberingSvc *service.NumberingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/brdid/reservar")
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

		n, err := numberingSvc.Reserve(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Número reservado", "number": n})
	}
}

func acquireNumberHandler(numberingSvc *service.NumberingService, v *validation.Validator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/brdid/adquirir")
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

		res, err := numberingSvc.Acquire(ctx, uid, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

func cancelNumberHandler(numberingSvc *service.NumberingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/brdid/numeros/{numero}")
		defer span.End()

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		number := chi.URLParam(r, "numero")
		if err := numberingSvc.Cancel(ctx, uid, number); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Número cancelado", ID: number})
	}
}
