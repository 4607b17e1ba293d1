package port

import (
	"context"

	"github.com/atendimentobr/atendimento-api/internal/domain"
)

// Find* methods return (nil, nil) when the record does not exist. Save*
// methods create the record when its ID is empty and overwrite the full row
// otherwise (last write wins).

// UserStore persists users. SaveUser returns *domain.ErrConflict when the
// lower-cased email is already taken.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error
}

// CompanyStore persists companies, looked up by owner.
type CompanyStore interface {
	FindCompanyByOwner(ctx context.Context, ownerID string) (*domain.Company, error)
	SaveCompany(ctx context.Context, c *domain.Company) error
}

// NumberStore persists reserved and acquired phone numbers.
type NumberStore interface {
	FindReservedNumber(ctx context.Context, companyID string) (*domain.ReservedNumber, error)
	ListNumbers(ctx context.Context, companyID string) ([]domain.ReservedNumber, error)
	SaveNumber(ctx context.Context, n *domain.ReservedNumber) error
}

// SubscriptionStore persists subscriptions. FindSubscriptionByUser returns
// the most recently created one.
type SubscriptionStore interface {
	FindSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)
	FindSubscriptionByProviderID(ctx context.Context, providerID string) (*domain.Subscription, error)
	SaveSubscription(ctx context.Context, s *domain.Subscription) error
}

// SettingsStore persists user settings.
type SettingsStore interface {
	FindSettings(ctx context.Context, userID string) (*domain.UserSettings, error)
	SaveSettings(ctx context.Context, s *domain.UserSettings) error
}

// Store is the full persistence surface, implemented by the postgres and
// in-memory adapters.
type Store interface {
	UserStore
	CompanyStore
	NumberStore
	SubscriptionStore
	SettingsStore
	Ping(ctx context.Context) error
}
