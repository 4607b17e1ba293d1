package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// MockWebhookSecret signs webhooks accepted by MockProvider unless another
// secret is configured.
const MockWebhookSecret = "whsec_mock"

// MockProvider is an in-process BillingProvider. Checkout sessions are paid
// as soon as they are created; SetPaymentStatus overrides that.
type MockProvider struct {
	webhookSecret string
	appURL        string
	logger        *zap.Logger
	now           func() time.Time

	mu            sync.Mutex
	customers     map[string]string
	sessions      map[string]*domain.CheckoutSession
	subscriptions map[string]*domain.ProviderSubscription
	products      map[string]bool // id -> active
}

// NewMockProvider creates a mock provider. An empty webhookSecret selects
// MockWebhookSecret.
func NewMockProvider(webhookSecret, appURL string, logger *zap.Logger) *MockProvider {
	if webhookSecret == "" {
		webhookSecret = MockWebhookSecret
	}
	return &MockProvider{
		webhookSecret: webhookSecret,
		appURL:        appURL,
		logger:        logger,
		now:           time.Now,
		customers:     map[string]string{},
		sessions:      map[string]*domain.CheckoutSession{},
		subscriptions: map[string]*domain.ProviderSubscription{},
		products:      map[string]bool{},
	}
}

func mockID(prefix string) string {
	return prefix + "_mock_" + uuid.NewString()[:8]
}

func (m *MockProvider) CreateCustomer(_ context.Context, email, _ string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := mockID("cus")
	m.customers[id] = email
	m.logger.Info("mock billing: customer created", zap.String("customer", id))
	return id, nil
}

func (m *MockProvider) CreatePaymentIntent(_ context.Context, customerID string, plan domain.Plan, _ domain.CheckoutMetadata) (*domain.PaymentIntent, error) {
	id := mockID("pi")
	return &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_mock",
		Amount:       plan.Amount,
		Currency:     plan.Currency,
		CustomerID:   customerID,
	}, nil
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, p domain.CheckoutParams) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	sub := &domain.ProviderSubscription{
		ID:                 mockID("sub"),
		CustomerID:         p.CustomerID,
		PriceID:            mockID("price"),
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		Metadata:           p.Metadata,
	}
	if p.TrialDays > 0 {
		end := now.Add(time.Duration(p.TrialDays) * 24 * time.Hour)
		sub.Status = domain.SubscriptionTrialing
		sub.TrialStart, sub.TrialEnd = &now, &end
	}
	m.subscriptions[sub.ID] = sub

	id := mockID("cs")
	s := &domain.CheckoutSession{
		ID:             id,
		URL:            fmt.Sprintf("%s/payment/success?session_id=%s", m.appURL, id),
		CustomerID:     p.CustomerID,
		SubscriptionID: sub.ID,
		PaymentStatus:  domain.PaymentStatusPaid,
		Metadata:       p.Metadata,
	}
	m.sessions[id] = s

	cp := *s
	return &cp, nil
}

func (m *MockProvider) GetCheckoutSession(_ context.Context, sessionID string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "checkout session", ID: sessionID}
	}
	cp := *s
	return &cp, nil
}

// SetPaymentStatus changes what GetCheckoutSession reports for sessionID.
func (m *MockProvider) SetPaymentStatus(sessionID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.PaymentStatus = status
	}
}

func (m *MockProvider) GetSubscription(_ context.Context, subscriptionID string) (*domain.ProviderSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: subscriptionID}
	}
	cp := *s
	return &cp, nil
}

func (m *MockProvider) CancelSubscription(_ context.Context, subscriptionID string, atPeriodEnd bool) (*domain.ProviderSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: subscriptionID}
	}
	if atPeriodEnd {
		s.CancelAtPeriodEnd = true
	} else {
		now := m.now().UTC()
		s.Status = domain.SubscriptionCanceled
		s.CanceledAt = &now
	}
	cp := *s
	return &cp, nil
}

func (m *MockProvider) CreateMonthlyPrice(_ context.Context, req domain.PriceRequest) (*domain.ProviderPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prod := mockID("prod")
	m.products[prod] = true
	return &domain.ProviderPrice{ProductID: prod, PriceID: mockID("price")}, nil
}

func (m *MockProvider) ArchiveProduct(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return &domain.ErrNotFound{Resource: "product", ID: productID}
	}
	m.products[productID] = false
	return nil
}

// ProductActive reports whether productID exists and is not archived.
func (m *MockProvider) ProductActive(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID]
}

// ParseWebhook verifies the Stripe-Signature header against the mock secret,
// so the webhook path behaves the same in every mode.
func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*domain.BillingEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, m.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &domain.ErrValidation{Message: "Assinatura do webhook inválida"}
	}
	return decodeEvent(evt)
}

// SignPayload returns a Stripe-Signature header for payload, for tests and
// local tooling.
func (m *MockProvider) SignPayload(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  m.webhookSecret,
	})
	return signed.Header
}
