// Package service holds the application services: authentication, company,
// onboarding, billing, numbering and dashboard orchestration.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const verificationTTL = 10 * time.Minute

// AuthService orchestrates registration, login, password changes and e-mail
// verification.
type AuthService struct {
	users  port.UserStore
	tokens *TokenIssuer
	mailer port.Mailer
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users port.UserStore, tokens *TokenIssuer, mailer port.Mailer, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

// Tokens returns the issuer used by the authentication middleware.
func (s *AuthService) Tokens() *TokenIssuer { return s.tokens }

// ============================================================
// Register: POST /api/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)

	var missing []string
	if email == "" {
		missing = append(missing, "email é obrigatório")
	}
	if req.Password == "" {
		missing = append(missing, "password é obrigatório")
	}
	if name == "" {
		missing = append(missing, "name é obrigatório")
	}
	if len(missing) > 0 {
		return nil, &domain.ErrValidation{Message: "Campos obrigatórios ausentes", Errors: missing}
	}

	if !ValidEmail(email) {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	if v := PasswordViolations(req.Password); len(v) > 0 {
		return nil, passwordError("password", v)
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "E-mail já cadastrado"}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:              email,
		PasswordHash:       hash,
		Name:               name,
		Phone:              strings.TrimSpace(req.Phone),
		SubscriptionStatus: domain.SubscriptionInactive,
	}
	// A concurrent registration can still win the race; the store reports it
	// as a conflict through the unique index.
	if err := s.users.SaveUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return s.authResponse(u)
}

// ============================================================
// Login: POST /api/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Message: "E-mail e senha são obrigatórios"}
	}

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || !CheckPassword(u.PasswordHash, req.Password) {
		s.logger.Warn("login: invalid credentials", zap.Bool("known_email", u != nil))
		return nil, &domain.ErrUnauthorized{Reason: domain.AuthBadCredentials, Message: "Credenciais inválidas"}
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return s.authResponse(u)
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Me")
	defer span.End()

	return loadUser(ctx, s.users, userID)
}

// ============================================================
// ChangePassword: PUT /api/auth/password
// ============================================================

// ChangePassword replaces the password hash. Tokens issued before the change
// stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ChangePassword")
	defer span.End()

	u, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return err
	}

	if !CheckPassword(u.PasswordHash, req.CurrentPassword) {
		s.logger.Warn("password change: wrong current password", zap.String("user_id", userID))
		return &domain.ErrUnauthorized{Reason: domain.AuthBadCredentials, Message: "Senha atual incorreta"}
	}
	if v := PasswordViolations(req.NewPassword); len(v) > 0 {
		return passwordError("newPassword", v)
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := s.users.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// ============================================================
// E-mail verification: POST /api/auth/verify-email/{request,confirm}
// ============================================================

// RequestEmailVerification stores a hashed 6-digit code and mails it.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) (*domain.VerificationSentResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.RequestEmailVerification")
	defer span.End()

	u, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if u.IsEmailVerified {
		return nil, &domain.ErrConflict{Message: "E-mail já verificado"}
	}

	code := generateVerificationCode()
	expires := s.now().Add(verificationTTL)
	u.VerificationCode = hashToken(code)
	u.VerificationExpiry = &expires
	if err := s.users.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save verification code: %w", err)
	}

	body := fmt.Sprintf(
		"<p>Olá, %s!</p><p>Seu código de verificação do Atendimento BR é <strong>%s</strong>.</p><p>Ele expira em %d minutos.</p>",
		u.Name, code, int(verificationTTL.Minutes()),
	)
	if err := s.mailer.Send(ctx, u.Email, "Confirme seu e-mail", body); err != nil {
		s.logger.Error("verification e-mail failed", zap.String("user_id", userID), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "mail", Err: err}
	}

	s.logger.Info("verification code sent", zap.String("user_id", userID))
	return &domain.VerificationSentResponse{
		Message:     "Código de verificação enviado",
		MaskedEmail: maskEmail(u.Email),
		ExpiresIn:   int(verificationTTL.Seconds()),
	}, nil
}

// ConfirmEmail checks code and marks the e-mail as verified. Confirming an
// already verified address is a no-op.
func (s *AuthService) ConfirmEmail(ctx context.Context, userID, code string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ConfirmEmail")
	defer span.End()

	u, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if u.IsEmailVerified {
		return u, nil
	}

	if u.VerificationCode == "" || u.VerificationExpiry == nil || s.now().After(*u.VerificationExpiry) {
		return nil, &domain.ErrInvalidCode{}
	}
	if subtle.ConstantTimeCompare([]byte(u.VerificationCode), []byte(hashToken(code))) != 1 {
		s.logger.Warn("email verification: wrong code", zap.String("user_id", userID))
		return nil, &domain.ErrInvalidCode{}
	}

	u.IsEmailVerified = true
	u.VerificationCode = ""
	u.VerificationExpiry = nil
	if err := s.users.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info("email verified", zap.String("user_id", userID))
	return u, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *AuthService) authResponse(u *domain.User) (*domain.AuthResponse, error) {
	token, err := s.tokens.Issue(domain.Principal{UserID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		User:      u,
	}, nil
}

// loadUser returns the user or *domain.ErrNotFound.
func loadUser(ctx context.Context, users port.UserStore, userID string) (*domain.User, error) {
	u, err := users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return u, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func generateVerificationCode() string {
	code := ""
	for i := 0; i < 6; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		code += fmt.Sprintf("%d", n.Int64())
	}
	return code
}

func maskEmail(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "***@***.com"
	}
	local := parts[0]

	masked := string(local[0])
	if len(local) > 1 {
		masked += strings.Repeat("*", len(local)-2)
		masked += string(local[len(local)-1])
	} else {
		masked += "***"
	}
	return masked + "@" + parts[1]
}
