package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Company status values.
const (
	CompanyStatusSetup  = "setup"
	CompanyStatusActive = "active"
)

// Meta Business linkage status values.
const (
	MetaStatusPending  = "pending"
	MetaStatusApproved = "approved"
	MetaStatusRejected = "rejected"
)

// Company is the tenant record owned by exactly one user.
type Company struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"ownerId"`
	Name               string          `json:"name"`
	CNPJ               string          `json:"cnpj,omitempty"`
	Email              string          `json:"email,omitempty"`
	Phone              string          `json:"phone,omitempty"`
	Address            string          `json:"address,omitempty"`
	City               string          `json:"city,omitempty"`
	State              string          `json:"state,omitempty"`
	ZipCode            string          `json:"zipCode,omitempty"`
	WhatsAppNumber     string          `json:"whatsappNumber,omitempty"`
	WhatsAppVerified   bool            `json:"whatsappVerified"`
	MetaBusinessID     string          `json:"metaBusinessId,omitempty"`
	MetaWabaID         string          `json:"metaWabaId,omitempty"`
	MetaBusinessStatus string          `json:"metaBusinessStatus,omitempty"`
	StripeCustomerID   string          `json:"stripeCustomerId,omitempty"`
	SetupProgress      int             `json:"setupProgress"`
	ProfileSetup       bool            `json:"profileSetup"`
	WhatsAppSetup      bool            `json:"whatsappSetup"`
	PaymentSetup       bool            `json:"paymentSetup"`
	AutomationSetup    bool            `json:"automationSetup"`
	Status             string          `json:"status"`
	AreaLocal          string          `json:"areaLocal,omitempty"`
	CN                 string          `json:"cn,omitempty"`
	NumberPurchasedAt  *time.Time      `json:"numberPurchasedAt,omitempty"`
	AutomationPrefs    json.RawMessage `json:"automationPrefs,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// RecomputeProgress derives SetupProgress from the four setup flags. Every
// write that touches a flag calls it; the stored value is never read back for
// gating.
func (c *Company) RecomputeProgress() {
	done := 0
	for _, f := range []bool{c.ProfileSetup, c.WhatsAppSetup, c.PaymentSetup, c.AutomationSetup} {
		if f {
			done++
		}
	}
	c.SetupProgress = int(math.Round(100 * float64(done) / 4))
}

// CompanyRequest is the body for POST/PUT /api/company and the company part
// of POST /api/onboarding/business-info.
type CompanyRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=160"`
	CNPJ    string `json:"cnpj,omitempty" validate:"omitempty,min=14,max=18"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,min=8,max=20"`
	Address string `json:"address,omitempty" validate:"omitempty,max=200"`
	City    string `json:"city,omitempty" validate:"omitempty,max=100"`
	State   string `json:"state,omitempty" validate:"omitempty,len=2"`
	ZipCode string `json:"zipCode,omitempty" validate:"omitempty,max=10"`
}

// Apply copies the request's non-empty fields onto c.
func (r *CompanyRequest) Apply(c *Company) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Name, r.Name)
	set(&c.CNPJ, r.CNPJ)
	set(&c.Email, r.Email)
	set(&c.Phone, r.Phone)
	set(&c.Address, r.Address)
	set(&c.City, r.City)
	set(&c.State, r.State)
	set(&c.ZipCode, r.ZipCode)
}
