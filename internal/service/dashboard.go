package service

import (
	"context"
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

// DashboardService aggregates the dashboard page.
type DashboardService struct {
	store   port.Store
	billing *BillingService
	logger  *zap.Logger
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(store port.Store, billing *BillingService, logger *zap.Logger) *DashboardService {
	return &DashboardService{store: store, billing: billing, logger: logger}
}

// Get loads user, company and subscription concurrently and derives the
// progress from them.
func (s *DashboardService) Get(ctx context.Context, userID string) (*domain.Dashboard, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Get")
	defer span.End()

	var (
		user    *domain.User
		company *domain.Company
		status  *domain.SubscriptionStatus
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		u, err := loadUser(gCtx, s.store, userID)
		user = u
		return err
	})

	g.Go(func() error {
		c, err := s.store.FindCompanyByOwner(gCtx, userID)
		if err != nil {
			return fmt.Errorf("get company: %w", err)
		}
		company = c
		return nil
	})

	g.Go(func() error {
		st, err := s.billing.Status(gCtx, userID)
		status = st
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		User:         user,
		Company:      company,
		Progress:     DeriveProgress(company),
		Subscription: status,
	}, nil
}
