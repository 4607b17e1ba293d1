package domain

import "time"

// Subscription status mirror values stored on the user row.
const (
	SubscriptionInactive = "inactive"
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

// User is the identity record. Email is stored lower-cased.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone,omitempty"`
	BusinessName       string     `json:"businessName,omitempty"`
	BusinessType       string     `json:"businessType,omitempty"`
	Website            string     `json:"website,omitempty"`
	IsEmailVerified    bool       `json:"isEmailVerified"`
	ProfileComplete    bool       `json:"profileComplete"`
	OnboardingComplete bool       `json:"onboardingComplete"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	SubscriptionID     string     `json:"subscriptionId,omitempty"`
	CompanyID          string     `json:"companyId,omitempty"`
	VerificationCode   string     `json:"-"`
	VerificationExpiry *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// HasProfileData reports whether the fields the profile step asks for are set.
func (u *User) HasProfileData() bool {
	return u.Name != "" && u.Phone != "" && u.BusinessName != ""
}

// UserSettings holds notification and locale preferences, one row per user.
type UserSettings struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	EmailNotifications    bool      `json:"emailNotifications"`
	WhatsAppNotifications bool      `json:"whatsappNotifications"`
	SMSNotifications      bool      `json:"smsNotifications"`
	MarketingEmails       bool      `json:"marketingEmails"`
	Language              string    `json:"language"`
	Timezone              string    `json:"timezone"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings a user gets on first read.
func DefaultSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:                userID,
		EmailNotifications:    true,
		WhatsAppNotifications: true,
		Language:              "pt-BR",
		Timezone:              "America/Sao_Paulo",
	}
}

// ============================================================
// Auth / profile request & response types
// ============================================================

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	User      *User  `json:"user"`
}

// ChangePasswordRequest is the body for PUT /api/auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// VerifyEmailRequest is the body for POST /api/auth/verify-email/confirm.
type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// VerificationSentResponse is returned after a verification code is sent.
type VerificationSentResponse struct {
	Message     string `json:"message"`
	MaskedEmail string `json:"maskedEmail"`
	ExpiresIn   int    `json:"expiresIn"`
}

// UpdateProfileRequest is the body for PUT /api/user/profile. Nil fields are
// left untouched.
type UpdateProfileRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,min=8,max=20"`
	BusinessName *string `json:"businessName,omitempty" validate:"omitempty,max=160"`
	BusinessType *string `json:"businessType,omitempty" validate:"omitempty,max=80"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url"`
}

// UpdateSettingsRequest is the body for PUT /api/user/settings.
type UpdateSettingsRequest struct {
	EmailNotifications    *bool   `json:"emailNotifications,omitempty"`
	WhatsAppNotifications *bool   `json:"whatsappNotifications,omitempty"`
	SMSNotifications      *bool   `json:"smsNotifications,omitempty"`
	MarketingEmails       *bool   `json:"marketingEmails,omitempty"`
	Language              *string `json:"language,omitempty" validate:"omitempty,oneof=pt-BR en-US es-ES"`
	Timezone              *string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// ProfileResponse is returned by GET /api/user/profile.
type ProfileResponse struct {
	User    *User    `json:"user"`
	Company *Company `json:"company,omitempty"`
}
