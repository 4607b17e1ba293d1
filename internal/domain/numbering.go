package domain

import "time"

// Reserved number status values.
const (
	NumberReserved = "reserved"
	NumberAcquired = "acquired"
	NumberCanceled = "canceled"
)

// ReservedNumber is a phone number held for a company. At most one record per
// company is in NumberReserved at a time.
type ReservedNumber struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"companyId"`
	Number          string     `json:"number"`
	CN              string     `json:"cn"`
	AreaLocal       string     `json:"areaLocal,omitempty"`
	Status          string     `json:"status"`
	MonthlyFee      int64      `json:"monthlyFee"`
	SetupFee        int64      `json:"setupFee"`
	ProviderOrderID string     `json:"providerOrderId,omitempty"`
	StripeProductID string     `json:"stripeProductId,omitempty"`
	StripePriceID   string     `json:"stripePriceId,omitempty"`
	AcquiredAt      *time.Time `json:"acquiredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Locality is an area served by the numbering provider.
type Locality struct {
	CN        string `json:"cn"`
	AreaLocal string `json:"areaLocal"`
	State     string `json:"uf"`
	Available int    `json:"disponiveis"`
}

// AvailableNumber is a number offered by the numbering provider.
type AvailableNumber struct {
	Number     string `json:"numero"`
	CN         string `json:"cn"`
	AreaLocal  string `json:"areaLocal"`
	MonthlyFee int64  `json:"valorMensal"`
	SetupFee   int64  `json:"valorInstalacao"`
}

// NumberRequest is the body for POST /api/brdid/reservar and
// POST /api/brdid/adquirir, and the body of the legacy
// POST /api/onboarding/whatsapp-number step.
type NumberRequest struct {
	Number     string `json:"numero" validate:"required,numeric,min=10,max=13"`
	CN         string `json:"cn" validate:"required,numeric,len=2"`
	AreaLocal  string `json:"areaLocal,omitempty" validate:"omitempty,max=80"`
	MonthlyFee int64  `json:"valorMensal" validate:"gte=0"`
	SetupFee   int64  `json:"valorInstalacao" validate:"gte=0"`
}

// ProviderOrder is what the numbering provider returns on acquisition.
type ProviderOrder struct {
	OrderID string `json:"pedido"`
	Number  string `json:"numero"`
	Status  string `json:"status"`
}

// AcquireResult is returned by POST /api/brdid/adquirir.
type AcquireResult struct {
	Number  *ReservedNumber `json:"number"`
	Company *Company        `json:"company"`
	Price   *ProviderPrice  `json:"price,omitempty"`
}
