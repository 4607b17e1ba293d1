package domain

import "time"

// TrialPeriod is the length of every free trial.
const TrialPeriod = 7 * 24 * time.Hour

// Subscription is the local billing record. It is never deleted, only moved
// to SubscriptionCanceled.
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	PlanID               string     `json:"planId"`
	ProviderSubscription string     `json:"stripeSubscriptionId,omitempty"`
	ProviderPriceID      string     `json:"stripePriceId,omitempty"`
	Status               string     `json:"status"`
	CurrentPeriodStart   *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	TrialStart           *time.Time `json:"trialStart,omitempty"`
	TrialEnd             *time.Time `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancelAtPeriodEnd"`
	CanceledAt           *time.Time `json:"canceledAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// SubscriptionStatus is returned by GET /api/subscription/status.
type SubscriptionStatus struct {
	Status          string        `json:"status"`
	HasSubscription bool          `json:"hasSubscription"`
	IsTrialing      bool          `json:"isTrialing"`
	TrialDaysLeft   int           `json:"trialDaysLeft,omitempty"`
	Plan            *Plan         `json:"plan,omitempty"`
	Subscription    *Subscription `json:"subscription,omitempty"`
	BillingMode     string        `json:"billingMode"`
}

// StartTrialRequest is the body for POST /api/subscription/start-trial.
type StartTrialRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=starter professional enterprise"`
}

// ActivateRequest is the body for POST /api/subscription/activate.
type ActivateRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// CancelRequest is the body for POST /api/subscription/cancel. Immediately
// ends the subscription now instead of at the end of the period.
type CancelRequest struct {
	Immediately bool `json:"immediately"`
}

// ActivationResult is returned by POST /api/subscription/activate.
type ActivationResult struct {
	Message      string        `json:"message"`
	Company      *Company      `json:"company"`
	Subscription *Subscription `json:"subscription"`
}
