// Package memstore is an in-process port.Store for local runs
// (STORE_DRIVER=memory) and tests. Records are copied on the way in and out.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/google/uuid"
)

// Store implements port.Store.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	companies     map[string]domain.Company
	numbers       map[string]domain.ReservedNumber
	subscriptions map[string]domain.Subscription
	settings      map[string]domain.UserSettings
	now           func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         map[string]domain.User{},
		companies:     map[string]domain.Company{},
		numbers:       map[string]domain.ReservedNumber{},
		subscriptions: map[string]domain.Subscription{},
		settings:      map[string]domain.UserSettings{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// stamp assigns an id and timestamps. It reports whether the record is new.
func (s *Store) stamp(id *string, created, updated *time.Time) bool {
	now := s.now()
	*updated = now
	if *id == "" {
		*id = uuid.NewString()
		*created = now
		return true
	}
	return false
}

// --- Users ---

func (s *Store) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return &domain.ErrConflict{Message: "E-mail já cadastrado"}
		}
	}
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	}
	s.stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	s.users[u.ID] = *u
	return nil
}

// --- Companies ---

func (s *Store) FindCompanyByOwner(_ context.Context, ownerID string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.companies {
		if c.OwnerID == ownerID {
			c.AutomationPrefs = append([]byte(nil), c.AutomationPrefs...)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveCompany(_ context.Context, c *domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.companies {
		if id != c.ID && other.OwnerID == c.OwnerID {
			return &domain.ErrConflict{Message: "Empresa já cadastrada"}
		}
	}
	if existing, ok := s.companies[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	stored := *c
	stored.AutomationPrefs = append([]byte(nil), c.AutomationPrefs...)
	s.companies[c.ID] = stored
	return nil
}

// --- Numbers ---

func (s *Store) FindReservedNumber(_ context.Context, companyID string) (*domain.ReservedNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.ReservedNumber
	for _, n := range s.numbers {
		if n.CompanyID == companyID && n.Status == domain.NumberReserved {
			if found == nil || n.UpdatedAt.After(found.UpdatedAt) {
				n := n
				found = &n
			}
		}
	}
	return found, nil
}

func (s *Store) ListNumbers(_ context.Context, companyID string) ([]domain.ReservedNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ReservedNumber{}
	for _, n := range s.numbers {
		if n.CompanyID == companyID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveNumber(_ context.Context, n *domain.ReservedNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.numbers[n.ID]; ok {
		n.CreatedAt = existing.CreatedAt
	}
	s.stamp(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	s.numbers[n.ID] = *n
	return nil
}

// --- Subscriptions ---

func (s *Store) FindSubscriptionByUser(_ context.Context, userID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			if found == nil || sub.CreatedAt.After(found.CreatedAt) {
				sub := sub
				found = &sub
			}
		}
	}
	return found, nil
}

func (s *Store) FindSubscriptionByProviderID(_ context.Context, providerID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if providerID != "" && sub.ProviderSubscription == providerID {
			return &sub, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveSubscription(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.ID]; ok {
		sub.CreatedAt = existing.CreatedAt
	}
	s.stamp(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	s.subscriptions[sub.ID] = *sub
	return nil
}

// SubscriptionCount returns how many subscriptions userID has; used by tests.
func (s *Store) SubscriptionCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			n++
		}
	}
	return n
}

// --- Settings ---

func (s *Store) FindSettings(_ context.Context, userID string) (*domain.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range s.settings {
		if set.UserID == userID {
			return &set, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveSettings(_ context.Context, set *domain.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.settings {
		if id != set.ID && other.UserID == set.UserID {
			return &domain.ErrConflict{Message: "Configurações já existem"}
		}
	}
	if existing, ok := s.settings[set.ID]; ok {
		set.CreatedAt = existing.CreatedAt
	}
	s.stamp(&set.ID, &set.CreatedAt, &set.UpdatedAt)
	s.settings[set.ID] = *set
	return nil
}
