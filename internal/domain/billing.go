package domain

import (
	"encoding/json"
	"time"
)

// BillingMode selects how provider-backed operations behave. It is resolved
// once at startup.
type BillingMode string

const (
	BillingDisabled BillingMode = "disabled"
	BillingMock     BillingMode = "mock"
	BillingLive     BillingMode = "live"
)

// ParseBillingMode returns the mode for s, or false when s is not a known mode.
func ParseBillingMode(s string) (BillingMode, bool) {
	switch m := BillingMode(s); m {
	case BillingDisabled, BillingMock, BillingLive:
		return m, true
	}
	return "", false
}

// Plan is a subscription bundle. Amount is in cents of Currency.
type Plan struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Amount      int64    `json:"amount" yaml:"amount"`
	Currency    string   `json:"currency" yaml:"currency"`
	Interval    string   `json:"interval" yaml:"interval"`
	Features    []string `json:"features" yaml:"features"`
	Popular     bool     `json:"popular,omitempty" yaml:"popular"`
}

// Checkout session payment status values.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// CheckoutMetadata is carried by every checkout session and subscription.
type CheckoutMetadata struct {
	UserID string
	PlanID string
	Trial  bool
}

// CheckoutSession is the provider-neutral view of a hosted checkout.
type CheckoutSession struct {
	ID             string           `json:"sessionId"`
	URL            string           `json:"url"`
	CustomerID     string           `json:"customerId,omitempty"`
	SubscriptionID string           `json:"subscriptionId,omitempty"`
	PaymentStatus  string           `json:"paymentStatus"`
	Metadata       CheckoutMetadata `json:"-"`
}

// CheckoutParams is what the orchestrator asks the provider to create.
type CheckoutParams struct {
	CustomerID string
	Email      string
	Plan       Plan
	Metadata   CheckoutMetadata
	SuccessURL string
	CancelURL  string
	TrialDays  int64
}

// PaymentIntent is returned by POST /api/payment/create-intent.
type PaymentIntent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	CustomerID   string `json:"customerId"`
}

// ProviderSubscription is the provider-neutral view of a provider
// subscription object.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	Metadata           CheckoutMetadata
}

// Webhook event types handled by the billing orchestrator.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// BillingEvent is a verified webhook event. Exactly one of Session and
// Subscription is set for the checkout and subscription event families.
type BillingEvent struct {
	ID           string
	Type         string
	Created      time.Time
	Session      *CheckoutSession
	Subscription *ProviderSubscription
	Raw          json.RawMessage
}

// PriceRequest asks the provider for a recurring monthly product and price,
// used for the number rental fee.
type PriceRequest struct {
	Name     string
	Amount   int64
	Currency string
	Metadata map[string]string
}

// ProviderPrice identifies a created product/price pair.
type ProviderPrice struct {
	ProductID string `json:"productId"`
	PriceID   string `json:"priceId"`
}

// CreateIntentRequest is the body for POST /api/payment/create-intent.
type CreateIntentRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=starter professional enterprise"`
}

// CreateCheckoutRequest is the body for POST /api/stripe/create-checkout-session.
type CreateCheckoutRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=starter professional enterprise"`
	Trial  bool   `json:"trial"`
}

// WebhookAck is returned by POST /api/stripe/webhook.
type WebhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}
