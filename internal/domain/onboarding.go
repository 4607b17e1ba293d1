package domain

// ============================================================
// Onboarding: derived progress views
// ============================================================

// CompanyStep reports whether the company record exists.
type CompanyStep struct {
	Completed bool   `json:"completed"`
	Name      string `json:"name,omitempty"`
}

// WhatsAppStep reports the phone number step. Verified does not gate
// completion.
type WhatsAppStep struct {
	Completed bool   `json:"completed"`
	Number    string `json:"number,omitempty"`
	Verified  bool   `json:"verified"`
}

// MetaStep reports the Meta Business linkage. Status does not gate
// completion.
type MetaStep struct {
	Completed  bool   `json:"completed"`
	BusinessID string `json:"businessId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// PaymentStep reports whether the company has been activated by payment.
type PaymentStep struct {
	Completed     bool   `json:"completed"`
	CompanyStatus string `json:"companyStatus,omitempty"`
}

// OnboardingSteps groups the four company-centric steps.
type OnboardingSteps struct {
	Company  CompanyStep  `json:"company"`
	WhatsApp WhatsAppStep `json:"whatsapp"`
	Meta     MetaStep     `json:"meta"`
	Payment  PaymentStep  `json:"payment"`
}

// OnboardingProgress is the canonical progress view, recomputed on every read.
type OnboardingProgress struct {
	Steps       OnboardingSteps `json:"steps"`
	AllComplete bool            `json:"allComplete"`
}

// LegacyProgress is the user-centric three-field estimate served by
// GET /api/user/onboarding-status. It is not kept consistent with
// OnboardingProgress.
type LegacyProgress struct {
	ProfileComplete    bool   `json:"profileComplete"`
	EmailVerified      bool   `json:"emailVerified"`
	HasSubscription    bool   `json:"hasSubscription"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	CompletedSteps     int    `json:"completedSteps"`
	TotalSteps         int    `json:"totalSteps"`
	Percentage         int    `json:"percentage"`
	NextStep           string `json:"nextStep,omitempty"`
}

// ============================================================
// Onboarding: step requests
// ============================================================

// BusinessInfoRequest is the body for POST /api/onboarding/business-info.
type BusinessInfoRequest struct {
	CompanyRequest
	BusinessType string `json:"businessType,omitempty" validate:"omitempty,max=80"`
	Website      string `json:"website,omitempty" validate:"omitempty,url"`
	OwnerPhone   string `json:"ownerPhone,omitempty" validate:"omitempty,min=8,max=20"`
}

// MetaBusinessRequest is the body for POST /api/onboarding/meta-business.
type MetaBusinessRequest struct {
	MetaBusinessID string `json:"metaBusinessId" validate:"required,numeric,min=5,max=32"`
	WabaID         string `json:"wabaId,omitempty" validate:"omitempty,numeric"`
}

// AutomationSetupRequest is the body for POST /api/onboarding/automation-setup.
type AutomationSetupRequest struct {
	WelcomeMessage  string            `json:"welcomeMessage,omitempty" validate:"omitempty,max=1000"`
	AwayMessage     string            `json:"awayMessage,omitempty" validate:"omitempty,max=1000"`
	BusinessHours   map[string]string `json:"businessHours,omitempty"`
	AutoReply       bool              `json:"autoReply"`
	HumanHandoff    bool              `json:"humanHandoff"`
	Categories      []string          `json:"categories,omitempty" validate:"omitempty,max=20,dive,max=60"`
	NotifyOnMessage bool              `json:"notifyOnMessage"`
}

// CompleteOnboardingResponse is returned by POST /api/onboarding/complete.
type CompleteOnboardingResponse struct {
	Message  string              `json:"message"`
	User     *User               `json:"user"`
	Progress *OnboardingProgress `json:"progress"`
}

// Dashboard aggregates what the dashboard page renders.
type Dashboard struct {
	User         *User               `json:"user"`
	Company      *Company            `json:"company,omitempty"`
	Progress     *OnboardingProgress `json:"progress"`
	Subscription *SubscriptionStatus `json:"subscription"`
}
