package handler

import (
	"context"
	"net/http"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// JWTAuthMiddleware validates Bearer tokens and injects the principal into
// the request context.
func JWTAuthMiddleware(tokens *service.TokenIssuer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := tokens.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				logger.Warn("auth: rejected request",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				handleServiceError(w, err, logger)
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("user.id", p.UserID))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// userID returns the caller's id, writing a 401 when the request was not
// authenticated.
func userID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		handleServiceError(w, &domain.ErrUnauthorized{Reason: domain.AuthPrincipalMissing, Message: "Não autenticado"}, logger)
		return "", false
	}
	return p.UserID, true
}
