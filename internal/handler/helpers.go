package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validation.Validator, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return &domain.ErrValidation{Message: "Corpo da requisição inválido"}
	}
	return v.Struct(dst)
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, v *validation.Validator, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return &domain.ErrValidation{Message: "Corpo da requisição inválido"}
	}
	return v.Struct(dst)
}

var notFoundMessages = map[string]string{
	"user":             "Usuário não encontrado",
	"company":          "Empresa não encontrada",
	"subscription":     "Assinatura não encontrada",
	"number":           "Número não encontrado",
	"checkout session": "Sessão de pagamento não encontrada",
}

// handleServiceError maps domain errors to HTTP responses. Upstream provider
// messages are logged, never returned.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		logger.Debug("validation error", zap.String("error", err.Error()))
		resp := errorResponse{Error: err.Error()}
		var verr *domain.ErrValidation
		if errors.As(err, &verr) {
			resp.Error = verr.Message
			resp.Errors = verr.Errors
		}
		writeJSON(w, http.StatusBadRequest, resp)

	case domain.KindAuth:
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		resp := errorResponse{Error: err.Error()}
		var ue *domain.ErrUnauthorized
		if errors.As(err, &ue) {
			resp.Code = string(ue.Reason)
		}
		writeJSON(w, http.StatusUnauthorized, resp)

	case domain.KindForbidden:
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, "Acesso negado")

	case domain.KindNotFound:
		logger.Debug("not found", zap.String("error", err.Error()))
		msg := "Recurso não encontrado"
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			if m, ok := notFoundMessages[nf.Resource]; ok {
				msg = m
			}
		}
		writeError(w, http.StatusNotFound, msg)

	case domain.KindConflict:
		logger.Debug("conflict", zap.String("error", err.Error()))
		resp := errorResponse{Error: err.Error()}
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			resp.Missing = conflict.Missing
		}
		writeJSON(w, http.StatusConflict, resp)

	case domain.KindUpstream:
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Falha ao comunicar com serviço externo")

	case domain.KindUnavailable:
		logger.Warn("service unavailable", zap.Error(err))
		msg := "Serviço temporariamente indisponível"
		var off *domain.ErrUnavailable
		if errors.As(err, &off) {
			msg = off.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)

	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
	}
}
