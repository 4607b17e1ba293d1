package postgres

import (
	"encoding/json"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"gorm.io/datatypes"
)

// Row types carry the gorm schema; the domain types stay free of tags for
// storage.

type userRow struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	Email              string `gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	PasswordHash       string `gorm:"not null"`
	Name               string `gorm:"size:120;not null"`
	Phone              string `gorm:"size:20"`
	BusinessName       string `gorm:"size:160"`
	BusinessType       string `gorm:"size:80"`
	Website            string `gorm:"size:255"`
	IsEmailVerified    bool   `gorm:"not null;default:false"`
	ProfileComplete    bool   `gorm:"not null;default:false"`
	OnboardingComplete bool   `gorm:"not null;default:false"`
	SubscriptionStatus string `gorm:"size:20;not null;default:inactive"`
	SubscriptionID     string `gorm:"size:64"`
	CompanyID          string `gorm:"size:64"`
	VerificationCode   string `gorm:"size:64"`
	VerificationExpiry *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userRow) TableName() string { return "users" }

func toUserRow(u *domain.User) *userRow {
	return &userRow{
		ID:                 u.ID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Name:               u.Name,
		Phone:              u.Phone,
		BusinessName:       u.BusinessName,
		BusinessType:       u.BusinessType,
		Website:            u.Website,
		IsEmailVerified:    u.IsEmailVerified,
		ProfileComplete:    u.ProfileComplete,
		OnboardingComplete: u.OnboardingComplete,
		SubscriptionStatus: u.SubscriptionStatus,
		SubscriptionID:     u.SubscriptionID,
		CompanyID:          u.CompanyID,
		VerificationCode:   u.VerificationCode,
		VerificationExpiry: u.VerificationExpiry,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:                 r.ID,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		Name:               r.Name,
		Phone:              r.Phone,
		BusinessName:       r.BusinessName,
		BusinessType:       r.BusinessType,
		Website:            r.Website,
		IsEmailVerified:    r.IsEmailVerified,
		ProfileComplete:    r.ProfileComplete,
		OnboardingComplete: r.OnboardingComplete,
		SubscriptionStatus: r.SubscriptionStatus,
		SubscriptionID:     r.SubscriptionID,
		CompanyID:          r.CompanyID,
		VerificationCode:   r.VerificationCode,
		VerificationExpiry: r.VerificationExpiry,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type companyRow struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	OwnerID            string `gorm:"type:uuid;not null;uniqueIndex"`
	Name               string `gorm:"size:160;not null"`
	CNPJ               string `gorm:"column:cnpj;size:18"`
	Email              string `gorm:"size:255"`
	Phone              string `gorm:"size:20"`
	Address            string `gorm:"size:200"`
	City               string `gorm:"size:100"`
	State              string `gorm:"size:2"`
	ZipCode            string `gorm:"size:10"`
	WhatsAppNumber     string `gorm:"column:whatsapp_number;size:20"`
	WhatsAppVerified   bool   `gorm:"column:whatsapp_verified;not null;default:false"`
	MetaBusinessID     string `gorm:"size:64"`
	MetaWabaID         string `gorm:"size:64"`
	MetaBusinessStatus string `gorm:"size:20"`
	StripeCustomerID   string `gorm:"size:64;index"`
	SetupProgress      int    `gorm:"not null;default:0"`
	ProfileSetup       bool   `gorm:"not null;default:false"`
	WhatsAppSetup      bool   `gorm:"column:whatsapp_setup;not null;default:false"`
	PaymentSetup       bool   `gorm:"not null;default:false"`
	AutomationSetup    bool   `gorm:"not null;default:false"`
	Status             string `gorm:"size:20;not null;default:setup"`
	AreaLocal          string `gorm:"size:80"`
	CN                 string `gorm:"column:cn;size:2"`
	NumberPurchasedAt  *time.Time
	AutomationPrefs    datatypes.JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (companyRow) TableName() string { return "companies" }

func toCompanyRow(c *domain.Company) *companyRow {
	return &companyRow{
		ID:                 c.ID,
		OwnerID:            c.OwnerID,
		Name:               c.Name,
		CNPJ:               c.CNPJ,
		Email:              c.Email,
		Phone:              c.Phone,
		Address:            c.Address,
		City:               c.City,
		State:              c.State,
		ZipCode:            c.ZipCode,
		WhatsAppNumber:     c.WhatsAppNumber,
		WhatsAppVerified:   c.WhatsAppVerified,
		MetaBusinessID:     c.MetaBusinessID,
		MetaWabaID:         c.MetaWabaID,
		MetaBusinessStatus: c.MetaBusinessStatus,
		StripeCustomerID:   c.StripeCustomerID,
		SetupProgress:      c.SetupProgress,
		ProfileSetup:       c.ProfileSetup,
		WhatsAppSetup:      c.WhatsAppSetup,
		PaymentSetup:       c.PaymentSetup,
		AutomationSetup:    c.AutomationSetup,
		Status:             c.Status,
		AreaLocal:          c.AreaLocal,
		CN:                 c.CN,
		NumberPurchasedAt:  c.NumberPurchasedAt,
		AutomationPrefs:    datatypes.JSON(c.AutomationPrefs),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func (r *companyRow) toDomain() *domain.Company {
	var prefs json.RawMessage
	if len(r.AutomationPrefs) > 0 {
		prefs = json.RawMessage(r.AutomationPrefs)
	}
	return &domain.Company{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		Name:               r.Name,
		CNPJ:               r.CNPJ,
		Email:              r.Email,
		Phone:              r.Phone,
		Address:            r.Address,
		City:               r.City,
		State:              r.State,
		ZipCode:            r.ZipCode,
		WhatsAppNumber:     r.WhatsAppNumber,
		WhatsAppVerified:   r.WhatsAppVerified,
		MetaBusinessID:     r.MetaBusinessID,
		MetaWabaID:         r.MetaWabaID,
		MetaBusinessStatus: r.MetaBusinessStatus,
		StripeCustomerID:   r.StripeCustomerID,
		SetupProgress:      r.SetupProgress,
		ProfileSetup:       r.ProfileSetup,
		WhatsAppSetup:      r.WhatsAppSetup,
		PaymentSetup:       r.PaymentSetup,
		AutomationSetup:    r.AutomationSetup,
		Status:             r.Status,
		AreaLocal:          r.AreaLocal,
		CN:                 r.CN,
		NumberPurchasedAt:  r.NumberPurchasedAt,
		AutomationPrefs:    prefs,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type numberRow struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	CompanyID       string `gorm:"type:uuid;not null;index:idx_numbers_company_status"`
	Number          string `gorm:"size:20;not null"`
	CN              string `gorm:"column:cn;size:2;not null"`
	AreaLocal       string `gorm:"size:80"`
	Status          string `gorm:"size:20;not null;index:idx_numbers_company_status"`
	MonthlyFee      int64
	SetupFee        int64
	ProviderOrderID string `gorm:"size:64"`
	StripeProductID string `gorm:"size:64"`
	StripePriceID   string `gorm:"size:64"`
	AcquiredAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (numberRow) TableName() string { return "reserved_numbers" }

func toNumberRow(n *domain.ReservedNumber) *numberRow {
	return &numberRow{
		ID:              n.ID,
		CompanyID:       n.CompanyID,
		Number:          n.Number,
		CN:              n.CN,
		AreaLocal:       n.AreaLocal,
		Status:          n.Status,
		MonthlyFee:      n.MonthlyFee,
		SetupFee:        n.SetupFee,
		ProviderOrderID: n.ProviderOrderID,
		StripeProductID: n.StripeProductID,
		StripePriceID:   n.StripePriceID,
		AcquiredAt:      n.AcquiredAt,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

func (r *numberRow) toDomain() *domain.ReservedNumber {
	return &domain.ReservedNumber{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		Number:          r.Number,
		CN:              r.CN,
		AreaLocal:       r.AreaLocal,
		Status:          r.Status,
		MonthlyFee:      r.MonthlyFee,
		SetupFee:        r.SetupFee,
		ProviderOrderID: r.ProviderOrderID,
		StripeProductID: r.StripeProductID,
		StripePriceID:   r.StripePriceID,
		AcquiredAt:      r.AcquiredAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type subscriptionRow struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	UserID               string `gorm:"type:uuid;not null;index"`
	PlanID               string `gorm:"size:32;not null"`
	StripeSubscriptionID string `gorm:"size:64;index"`
	StripePriceID        string `gorm:"size:64"`
	Status               string `gorm:"size:20;not null"`
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CancelAtPeriodEnd    bool `gorm:"not null;default:false"`
	CanceledAt           *time.Time
	CreatedAt            time.Time `gorm:"index"`
	UpdatedAt            time.Time
}

func (subscriptionRow) TableName() string { return "subscriptions" }

func toSubscriptionRow(s *domain.Subscription) *subscriptionRow {
	return &subscriptionRow{
		ID:                   s.ID,
		UserID:               s.UserID,
		PlanID:               s.PlanID,
		StripeSubscriptionID: s.ProviderSubscription,
		StripePriceID:        s.ProviderPriceID,
		Status:               s.Status,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		TrialStart:           s.TrialStart,
		TrialEnd:             s.TrialEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		CanceledAt:           s.CanceledAt,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (r *subscriptionRow) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:                   r.ID,
		UserID:               r.UserID,
		PlanID:               r.PlanID,
		ProviderSubscription: r.StripeSubscriptionID,
		ProviderPriceID:      r.StripePriceID,
		Status:               r.Status,
		CurrentPeriodStart:   r.CurrentPeriodStart,
		CurrentPeriodEnd:     r.CurrentPeriodEnd,
		TrialStart:           r.TrialStart,
		TrialEnd:             r.TrialEnd,
		CancelAtPeriodEnd:    r.CancelAtPeriodEnd,
		CanceledAt:           r.CanceledAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type settingsRow struct {
	ID                    string `gorm:"type:uuid;primaryKey"`
	UserID                string `gorm:"type:uuid;not null;uniqueIndex"`
	EmailNotifications    bool   `gorm:"not null"`
	WhatsAppNotifications bool   `gorm:"column:whatsapp_notifications;not null"`
	SMSNotifications      bool   `gorm:"column:sms_notifications;not null;default:false"`
	MarketingEmails       bool   `gorm:"not null;default:false"`
	Language              string `gorm:"size:10;not null;default:pt-BR"`
	Timezone              string `gorm:"size:64;not null;default:America/Sao_Paulo"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (settingsRow) TableName() string { return "user_settings" }

func toSettingsRow(s *domain.UserSettings) *settingsRow {
	return &settingsRow{
		ID:                    s.ID,
		UserID:                s.UserID,
		EmailNotifications:    s.EmailNotifications,
		WhatsAppNotifications: s.WhatsAppNotifications,
		SMSNotifications:      s.SMSNotifications,
		MarketingEmails:       s.MarketingEmails,
		Language:              s.Language,
		Timezone:              s.Timezone,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func (r *settingsRow) toDomain() *domain.UserSettings {
	return &domain.UserSettings{
		ID:                    r.ID,
		UserID:                r.UserID,
		EmailNotifications:    r.EmailNotifications,
		WhatsAppNotifications: r.WhatsAppNotifications,
		SMSNotifications:      r.SMSNotifications,
		MarketingEmails:       r.MarketingEmails,
		Language:              r.Language,
		Timezone:              r.Timezone,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}
