package port

import (
	"context"

	"github.com/atendimentobr/atendimento-api/internal/domain"
)

// BillingProvider wraps the payment provider's customer, checkout,
// subscription, product and webhook primitives.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	CreatePaymentIntent(ctx context.Context, customerID string, plan domain.Plan, md domain.CheckoutMetadata) (*domain.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, p domain.CheckoutParams) (*domain.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*domain.ProviderSubscription, error)
	CreateMonthlyPrice(ctx context.Context, req domain.PriceRequest) (*domain.ProviderPrice, error)
	ArchiveProduct(ctx context.Context, productID string) error

	// ParseWebhook verifies the signature header and decodes the event.
	// A bad signature yields *domain.ErrValidation.
	ParseWebhook(payload []byte, signature string) (*domain.BillingEvent, error)
}

// NumberingProvider is the external phone-number inventory.
type NumberingProvider interface {
	ListLocalities(ctx context.Context) ([]domain.Locality, error)
	ListNumbers(ctx context.Context, cn string, limit int) ([]domain.AvailableNumber, error)
	AcquireNumber(ctx context.Context, req domain.NumberRequest) (*domain.ProviderOrder, error)
	CancelNumber(ctx context.Context, number string) error
}
