package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
	tokenIssuer       = "atendimento-br"
	tokenTypeAccess   = "access"
)

// Deliberately loose: one @, no whitespace, a dot after the @.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an e-mail address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PasswordViolations returns one message per password rule p breaks, or nil.
func PasswordViolations(p string) []string {
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var out []string
	if utf8.RuneCountInString(p) < minPasswordLength {
		out = append(out, fmt.Sprintf("A senha deve ter pelo menos %d caracteres", minPasswordLength))
	}
	if !upper {
		out = append(out, "A senha deve conter pelo menos uma letra maiúscula")
	}
	if !lower {
		out = append(out, "A senha deve conter pelo menos uma letra minúscula")
	}
	if !digit {
		out = append(out, "A senha deve conter pelo menos um número")
	}
	return out
}

// passwordError wraps violations for the HTTP layer.
func passwordError(field string, violations []string) error {
	return &domain.ErrValidation{Field: field, Message: "Senha fraca", Errors: violations}
}

// HashPassword hashes p with bcrypt at cost 12.
func HashPassword(p string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether p matches hash.
func CheckPassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// ============================================================
// Tokens
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens. Tokens cannot be
// revoked: one stays valid for its whole lifetime, even across a password
// change.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer for secret with the given lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for issuing and verifying.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// TTL returns the token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for p.
func (t *TokenIssuer) Issue(p domain.Principal) (string, error) {
	now := t.now()
	claims := JWTClaims{
		Email: p.Email,
		Name:  p.Name,
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify checks signature and expiry. Expired tokens fail with
// AuthTokenExpired, anything else with AuthTokenInvalid.
func (t *TokenIssuer) Verify(tokenString string) (*domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Reason: domain.AuthTokenExpired, Message: "Token expirado"}
		}
		return nil, &domain.ErrUnauthorized{Reason: domain.AuthTokenInvalid, Message: "Token inválido"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Type != tokenTypeAccess || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Reason: domain.AuthTokenInvalid, Message: "Token inválido"}
	}

	return &domain.Principal{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Authenticate parses an Authorization header value. It must be exactly two
// space-separated parts, the first literally "Bearer".
func (t *TokenIssuer) Authenticate(header string) (*domain.Principal, error) {
	if header == "" {
		return nil, &domain.ErrUnauthorized{Reason: domain.AuthMissingToken, Message: "Token de autenticação não fornecido"}
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, &domain.ErrUnauthorized{Reason: domain.AuthMalformedHeader, Message: "Formato de token inválido"}
	}
	return t.Verify(parts[1])
}
