package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var profileTracer = otel.Tracer("service/profile")

// ProfileService serves the user profile and settings pages.
type ProfileService struct {
	store  port.Store
	logger *zap.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(store port.Store, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.ProfileResponse, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Get")
	defer span.End()

	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &domain.ProfileResponse{User: u, Company: c}, nil
}

// Update applies the non-nil fields. profileComplete follows whether name,
// phone and business name are all present.
func (s *ProfileService) Update(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Update")
	defer span.End()

	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.Name, req.Name)
	set(&u.Phone, req.Phone)
	set(&u.BusinessName, req.BusinessName)
	set(&u.BusinessType, req.BusinessType)
	set(&u.Website, req.Website)
	if u.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name é obrigatório"}
	}
	u.ProfileComplete = u.HasProfileData()

	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// Settings returns the user's settings, creating the defaults on first read.
func (s *ProfileService) Settings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Settings")
	defer span.End()

	if _, err := loadUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	set, err := s.store.FindSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if set != nil {
		return set, nil
	}

	set = domain.DefaultSettings(userID)
	if err := s.store.SaveSettings(ctx, set); err != nil {
		var conflict *domain.ErrConflict
		if !errors.As(err, &conflict) {
			return nil, fmt.Errorf("create settings: %w", err)
		}
		return s.store.FindSettings(ctx, userID)
	}
	return set, nil
}

func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, req *domain.UpdateSettingsRequest) (*domain.UserSettings, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.UpdateSettings")
	defer span.End()

	set, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}

	flag := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	flag(&set.EmailNotifications, req.EmailNotifications)
	flag(&set.WhatsAppNotifications, req.WhatsAppNotifications)
	flag(&set.SMSNotifications, req.SMSNotifications)
	flag(&set.MarketingEmails, req.MarketingEmails)
	if req.Language != nil {
		set.Language = *req.Language
	}
	if req.Timezone != nil {
		set.Timezone = *req.Timezone
	}

	if err := s.store.SaveSettings(ctx, set); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return set, nil
}
