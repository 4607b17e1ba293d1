package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var onboardingTracer = otel.Tracer("service/onboarding")

// Prerequisites reported by Complete when they are not met.
const (
	MissingEmailVerification = "email_verification"
	MissingProfile           = "profile"
	MissingPayment           = "payment"
)

// DeriveProgress computes the four-step view from the company alone. A nil
// company has no step complete.
func DeriveProgress(c *domain.Company) *domain.OnboardingProgress {
	p := &domain.OnboardingProgress{}
	if c == nil {
		return p
	}

	p.Steps.Company = domain.CompanyStep{Completed: true, Name: c.Name}
	p.Steps.WhatsApp = domain.WhatsAppStep{
		Completed: c.WhatsAppNumber != "",
		Number:    c.WhatsAppNumber,
		Verified:  c.WhatsAppVerified,
	}
	p.Steps.Meta = domain.MetaStep{
		Completed:  c.MetaBusinessID != "",
		BusinessID: c.MetaBusinessID,
		Status:     c.MetaBusinessStatus,
	}
	p.Steps.Payment = domain.PaymentStep{
		Completed:     c.Status == domain.CompanyStatusActive,
		CompanyStatus: c.Status,
	}
	p.AllComplete = p.Steps.Company.Completed &&
		p.Steps.WhatsApp.Completed &&
		p.Steps.Meta.Completed &&
		p.Steps.Payment.Completed
	return p
}

// DeriveLegacyProgress computes the older user-centric estimate: profile,
// e-mail verification and any subscription status other than inactive.
func DeriveLegacyProgress(u *domain.User) *domain.LegacyProgress {
	hasSub := u.SubscriptionStatus != "" && u.SubscriptionStatus != domain.SubscriptionInactive
	p := &domain.LegacyProgress{
		ProfileComplete:    u.ProfileComplete,
		EmailVerified:      u.IsEmailVerified,
		HasSubscription:    hasSub,
		OnboardingComplete: u.OnboardingComplete,
		TotalSteps:         3,
	}

	for _, step := range []struct {
		done bool
		name string
	}{
		{u.ProfileComplete, "profile"},
		{u.IsEmailVerified, "verify-email"},
		{hasSub, "subscription"},
	} {
		if step.done {
			p.CompletedSteps++
		} else if p.NextStep == "" {
			p.NextStep = step.name
		}
	}
	p.Percentage = int(math.Round(100 * float64(p.CompletedSteps) / float64(p.TotalSteps)))
	return p
}

// OnboardingService runs the onboarding wizard steps.
type OnboardingService struct {
	store     port.Store
	companies *CompanyService
	numbering *NumberingService
	mode      domain.BillingMode
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewOnboardingService creates a new onboarding service.
func NewOnboardingService(
	store port.Store,
	companies *CompanyService,
	numbering *NumberingService,
	mode domain.BillingMode,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		store:     store,
		companies: companies,
		numbering: numbering,
		mode:      mode,
		metrics:   metrics,
		logger:    logger,
	}
}

// Progress returns the four-step view for userID, recomputed on every call.
func (s *OnboardingService) Progress(ctx context.Context, userID string) (*domain.OnboardingProgress, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.Progress")
	defer span.End()

	if _, err := loadUser(ctx, s.store, userID); err != nil {
		return nil, err
	}
	c, err := s.store.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return DeriveProgress(c), nil
}

// LegacyStatus returns the three-field estimate for
// GET /api/user/onboarding-status.
func (s *OnboardingService) LegacyStatus(ctx context.Context, userID string) (*domain.LegacyProgress, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.LegacyStatus")
	defer span.End()

	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return DeriveLegacyProgress(u), nil
}

// BusinessInfo stores the company data, sets profileSetup and copies the
// business fields onto the user.
func (s *OnboardingService) BusinessInfo(ctx context.Context, userID string, req *domain.BusinessInfoRequest) (*domain.Company, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.BusinessInfo")
	defer span.End()

	c, err := s.companies.EnsureCompany(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.CompanyRequest.Apply(c)
	c.ProfileSetup = true
	c.RecomputeProgress()
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}

	// EnsureCompany may have written the user; reload before editing.
	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	u.BusinessName = c.Name
	if req.BusinessType != "" {
		u.BusinessType = req.BusinessType
	}
	if req.Website != "" {
		u.Website = req.Website
	}
	if phone := strings.TrimSpace(req.OwnerPhone); phone != "" {
		u.Phone = phone
	}
	u.ProfileComplete = u.HasProfileData()
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.step(observability.StepBusinessInfo, userID)
	return c, nil
}

// WhatsAppNumber reserves the chosen number for the company.
func (s *OnboardingService) WhatsAppNumber(ctx context.Context, userID string, req *domain.NumberRequest) (*domain.ReservedNumber, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.WhatsAppNumber")
	defer span.End()

	n, err := s.numbering.Reserve(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.step(observability.StepWhatsApp, userID)
	return n, nil
}

// MetaBusiness links the Meta Business account. Approval happens outside
// this service, so the status starts as pending.
func (s *OnboardingService) MetaBusiness(ctx context.Context, userID string, req *domain.MetaBusinessRequest) (*domain.Company, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.MetaBusiness")
	defer span.End()

	c, err := s.companies.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.MetaBusinessID = req.MetaBusinessID
	if req.WabaID != "" {
		c.MetaWabaID = req.WabaID
	}
	c.MetaBusinessStatus = domain.MetaStatusPending
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}

	s.step(observability.StepMeta, userID)
	return c, nil
}

// AutomationSetup stores the automation preferences and sets
// automationSetup.
func (s *OnboardingService) AutomationSetup(ctx context.Context, userID string, req *domain.AutomationSetupRequest) (*domain.Company, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.AutomationSetup")
	defer span.End()

	c, err := s.companies.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode automation prefs: %w", err)
	}
	c.AutomationPrefs = prefs
	c.AutomationSetup = true
	c.RecomputeProgress()
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}

	s.step(observability.StepAutomation, userID)
	return c, nil
}

// Complete finishes onboarding once the e-mail is verified and the profile
// is complete. In live billing mode the company payment must be set up too.
func (s *OnboardingService) Complete(ctx context.Context, userID string) (*domain.CompleteOnboardingResponse, error) {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("billing.mode", string(s.mode)))

	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}

	var missing []string
	if !u.IsEmailVerified {
		missing = append(missing, MissingEmailVerification)
	}
	if !u.ProfileComplete {
		missing = append(missing, MissingProfile)
	}
	if s.mode == domain.BillingLive && (c == nil || !c.PaymentSetup) {
		missing = append(missing, MissingPayment)
	}
	if len(missing) > 0 {
		s.logger.Info("onboarding completion blocked",
			zap.String("user_id", userID),
			zap.Strings("missing", missing),
		)
		return nil, &domain.ErrConflict{Message: "Pré-requisitos do onboarding não atendidos", Missing: missing}
	}

	u.OnboardingComplete = true
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.step(observability.StepComplete, userID)
	return &domain.CompleteOnboardingResponse{
		Message:  "Onboarding concluído com sucesso",
		User:     u,
		Progress: DeriveProgress(c),
	}, nil
}

func (s *OnboardingService) step(name, userID string) {
	s.metrics.IncrOnboardingStep(name)
	s.logger.Info("onboarding step completed", zap.String("step", name), zap.String("user_id", userID))
}
