package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/plans"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var billingTracer = otel.Tracer("service/billing")

// BillingService orchestrates customers, checkout, activation and webhook
// effects on top of a BillingProvider.
type BillingService struct {
	mode      domain.BillingMode
	provider  port.BillingProvider // nil in BillingDisabled
	catalog   *plans.Catalog
	store     port.Store
	companies *CompanyService
	dedupe    port.EventDeduper
	appURL    string
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// BillingConfig groups the BillingService dependencies.
type BillingConfig struct {
	Mode      domain.BillingMode
	Provider  port.BillingProvider
	Catalog   *plans.Catalog
	Store     port.Store
	Companies *CompanyService
	Dedupe    port.EventDeduper
	AppURL    string
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewBillingService creates the billing service. In BillingDisabled the
// provider is ignored and provider-backed operations return
// *domain.ErrUnavailable.
func NewBillingService(cfg BillingConfig) *BillingService {
	provider := cfg.Provider
	if cfg.Mode == domain.BillingDisabled {
		provider = nil
	}
	return &BillingService{
		mode:      cfg.Mode,
		provider:  provider,
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		companies: cfg.Companies,
		dedupe:    cfg.Dedupe,
		appURL:    cfg.AppURL,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Mode returns the configured billing mode.
func (s *BillingService) Mode() domain.BillingMode { return s.mode }

func (s *BillingService) requireProvider() error {
	if s.provider == nil {
		return &domain.ErrUnavailable{Feature: "Pagamentos"}
	}
	return nil
}

// ListPlans returns the plan catalog.
func (s *BillingService) ListPlans() []domain.Plan {
	return s.catalog.List()
}

// EnsureCustomer returns the caller's provider customer id, creating the
// company and the customer on first use.
func (s *BillingService) EnsureCustomer(ctx context.Context, userID string) (string, *domain.User, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.EnsureCustomer")
	defer span.End()

	if err := s.requireProvider(); err != nil {
		return "", nil, err
	}

	c, err := s.companies.EnsureCompany(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return "", nil, err
	}
	if c.StripeCustomerID != "" {
		return c.StripeCustomerID, u, nil
	}

	id, err := s.provider.CreateCustomer(ctx, u.Email, c.Name, map[string]string{
		"userId":    userID,
		"companyId": c.ID,
	})
	if err != nil {
		return "", nil, err
	}
	c.StripeCustomerID = id
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return "", nil, fmt.Errorf("save customer id: %w", err)
	}

	s.logger.Info("billing customer created", zap.String("user_id", userID), zap.String("customer", id))
	return id, u, nil
}

// CreatePaymentIntent starts an embedded payment for planID.
func (s *BillingService) CreatePaymentIntent(ctx context.Context, userID, planID string) (*domain.PaymentIntent, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreatePaymentIntent")
	defer span.End()
	span.SetAttributes(attribute.String("billing.plan", planID))

	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}
	customerID, _, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.provider.CreatePaymentIntent(ctx, customerID, plan, domain.CheckoutMetadata{UserID: userID, PlanID: plan.ID})
}

// CreateCheckoutSession starts a hosted checkout. trial adds the free trial
// period to the subscription.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID string, req *domain.CreateCheckoutRequest) (*domain.CheckoutSession, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreateCheckoutSession")
	defer span.End()
	span.SetAttributes(attribute.String("billing.plan", req.PlanID), attribute.Bool("billing.trial", req.Trial))

	plan, err := s.catalog.Get(req.PlanID)
	if err != nil {
		return nil, err
	}
	customerID, u, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := domain.CheckoutParams{
		CustomerID: customerID,
		Email:      u.Email,
		Plan:       plan,
		Metadata:   domain.CheckoutMetadata{UserID: userID, PlanID: plan.ID, Trial: req.Trial},
		SuccessURL: s.appURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.appURL + "/onboarding?step=payment&canceled=true",
	}
	if req.Trial {
		params.TrialDays = int64(domain.TrialPeriod / (24 * time.Hour))
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("checkout session created",
		zap.String("user_id", userID),
		zap.String("session", sess.ID),
		zap.String("plan", plan.ID),
	)
	return sess, nil
}

// Activate confirms a checkout session from the client side. The session is
// re-fetched from the provider and must be paid; nothing is written
// otherwise.
func (s *BillingService) Activate(ctx context.Context, userID, sessionID string) (*domain.ActivationResult, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.Activate")
	defer span.End()

	if err := s.requireProvider(); err != nil {
		return nil, err
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Metadata.UserID != userID {
		return nil, &domain.ErrForbidden{Action: "activate checkout session of another user"}
	}
	if sess.PaymentStatus != domain.PaymentStatusPaid {
		s.logger.Warn("activation with unpaid session",
			zap.String("user_id", userID),
			zap.String("session", sessionID),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return nil, &domain.ErrConflict{Message: "Pagamento não confirmado"}
	}

	c, err := s.activateCompany(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.applySession(ctx, sess)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrOnboardingStep(observability.StepPayment)
	s.logger.Info("subscription activated", zap.String("user_id", userID), zap.String("session", sessionID))
	return &domain.ActivationResult{Message: "Assinatura ativada com sucesso", Company: c, Subscription: sub}, nil
}

// StartTrial opens a local free trial. Only users without any subscription
// can start one.
func (s *BillingService) StartTrial(ctx context.Context, userID, planID string) (*domain.Subscription, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.StartTrial")
	defer span.End()

	if _, err := s.catalog.Get(planID); err != nil {
		return nil, err
	}
	existing, err := s.store.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "Usuário já possui assinatura"}
	}

	now := s.now().UTC()
	end := now.Add(domain.TrialPeriod)
	sub := &domain.Subscription{
		UserID:     userID,
		PlanID:     planID,
		Status:     domain.SubscriptionTrialing,
		TrialStart: &now,
		TrialEnd:   &end,
	}
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if err := s.mirrorUser(ctx, userID, sub); err != nil {
		return nil, err
	}

	s.logger.Info("trial started", zap.String("user_id", userID), zap.String("plan", planID))
	return sub, nil
}

// Cancel cancels the caller's latest subscription, at the end of the current
// period unless req.Immediately is set.
func (s *BillingService) Cancel(ctx context.Context, userID string, req *domain.CancelRequest) (*domain.Subscription, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.Cancel")
	defer span.End()

	sub, err := s.store.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: userID}
	}
	if sub.Status == domain.SubscriptionCanceled {
		return nil, &domain.ErrConflict{Message: "Assinatura já cancelada"}
	}

	if sub.ProviderSubscription != "" {
		if err := s.requireProvider(); err != nil {
			return nil, err
		}
		ps, err := s.provider.CancelSubscription(ctx, sub.ProviderSubscription, !req.Immediately)
		if err != nil {
			return nil, err
		}
		applyProviderSubscription(sub, ps)
	}

	if req.Immediately {
		now := s.now().UTC()
		sub.Status = domain.SubscriptionCanceled
		sub.CanceledAt = &now
	} else {
		sub.CancelAtPeriodEnd = true
	}

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if err := s.mirrorUser(ctx, userID, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription canceled",
		zap.String("user_id", userID),
		zap.Bool("immediately", req.Immediately),
	)
	return sub, nil
}

// Status summarizes the caller's latest subscription. It reads local state
// only and works in every billing mode.
func (s *BillingService) Status(ctx context.Context, userID string) (*domain.SubscriptionStatus, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.Status")
	defer span.End()

	sub, err := s.store.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	st := &domain.SubscriptionStatus{Status: domain.SubscriptionInactive, BillingMode: string(s.mode)}
	if sub == nil {
		return st, nil
	}

	st.Status = sub.Status
	st.Subscription = sub
	st.IsTrialing = sub.Status == domain.SubscriptionTrialing
	switch sub.Status {
	case domain.SubscriptionTrialing, domain.SubscriptionActive, domain.SubscriptionPastDue:
		st.HasSubscription = true
	}
	if st.IsTrialing && sub.TrialEnd != nil {
		left := sub.TrialEnd.Sub(s.now()).Hours() / 24
		st.TrialDaysLeft = int(math.Max(0, math.Ceil(left)))
	}
	if plan, err := s.catalog.Get(sub.PlanID); err == nil {
		st.Plan = &plan
	}
	return st, nil
}

// ============================================================
// Internal helpers
// ============================================================

// activateCompany marks the caller's company as paid, creating it if needed.
func (s *BillingService) activateCompany(ctx context.Context, userID string) (*domain.Company, error) {
	c, err := s.companies.EnsureCompany(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CompanyStatusActive
	c.PaymentSetup = true
	c.RecomputeProgress()
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}
	return c, nil
}

// applySession upserts the local subscription described by a paid checkout
// session. Trial sessions open a trial window; the others start a monthly
// period. A session whose provider subscription is already known updates
// that record instead of creating another.
func (s *BillingService) applySession(ctx context.Context, sess *domain.CheckoutSession) (*domain.Subscription, error) {
	md := sess.Metadata

	var sub *domain.Subscription
	if sess.SubscriptionID != "" {
		found, err := s.store.FindSubscriptionByProviderID(ctx, sess.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
		sub = found
	}
	if sub == nil && md.UserID != "" {
		// A local trial has no provider id yet; adopt it rather than
		// opening a second subscription for the same user.
		found, err := s.store.FindSubscriptionByUser(ctx, md.UserID)
		if err != nil {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
		if found != nil && found.ProviderSubscription == "" {
			sub = found
		}
	}
	if sub == nil {
		sub = &domain.Subscription{UserID: md.UserID}
	}
	if sess.SubscriptionID != "" {
		sub.ProviderSubscription = sess.SubscriptionID
	}
	if md.PlanID != "" {
		sub.PlanID = md.PlanID
	}

	now := s.now().UTC()
	if md.Trial {
		sub.Status = domain.SubscriptionTrialing
		if sub.TrialStart == nil || sub.TrialEnd == nil {
			end := now.Add(domain.TrialPeriod)
			sub.TrialStart, sub.TrialEnd = &now, &end
		}
	} else {
		sub.Status = domain.SubscriptionActive
		if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
			end := now.AddDate(0, 1, 0)
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd = &now, &end
		}
	}

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if err := s.mirrorUser(ctx, sub.UserID, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// mirrorUser copies the subscription status and id onto the user row.
func (s *BillingService) mirrorUser(ctx context.Context, userID string, sub *domain.Subscription) error {
	u, err := loadUser(ctx, s.store, userID)
	if err != nil {
		return err
	}
	if u.SubscriptionStatus == sub.Status && u.SubscriptionID == sub.ID {
		return nil
	}
	u.SubscriptionStatus = sub.Status
	u.SubscriptionID = sub.ID
	if err := s.store.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// applyProviderSubscription copies the provider's period, trial and
// cancellation fields onto sub.
func applyProviderSubscription(sub *domain.Subscription, ps *domain.ProviderSubscription) {
	if ps.Status != "" {
		sub.Status = ps.Status
	}
	if ps.PriceID != "" {
		sub.ProviderPriceID = ps.PriceID
	}
	if !ps.CurrentPeriodStart.IsZero() {
		start := ps.CurrentPeriodStart
		sub.CurrentPeriodStart = &start
	}
	if !ps.CurrentPeriodEnd.IsZero() {
		end := ps.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	if ps.TrialStart != nil {
		sub.TrialStart = ps.TrialStart
	}
	if ps.TrialEnd != nil {
		sub.TrialEnd = ps.TrialEnd
	}
	sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
	if ps.CanceledAt != nil {
		sub.CanceledAt = ps.CanceledAt
	}
}
