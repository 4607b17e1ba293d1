package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var companyTracer = otel.Tracer("service/company")

// CompanyService manages the tenant record owned by each user.
type CompanyService struct {
	users     port.UserStore
	companies port.CompanyStore
	logger    *zap.Logger
}

// NewCompanyService creates a new company service.
func NewCompanyService(users port.UserStore, companies port.CompanyStore, logger *zap.Logger) *CompanyService {
	return &CompanyService{users: users, companies: companies, logger: logger}
}

// Get returns the caller's company or *domain.ErrNotFound.
func (s *CompanyService) Get(ctx context.Context, userID string) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.Get")
	defer span.End()

	return s.load(ctx, userID)
}

// Create registers a company for the caller. A second company is a conflict.
func (s *CompanyService) Create(ctx context.Context, userID string, req *domain.CompanyRequest) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.Create")
	defer span.End()

	u, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.companies.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "Empresa já cadastrada"}
	}

	c := &domain.Company{OwnerID: userID, Status: domain.CompanyStatusSetup}
	req.Apply(c)
	c.RecomputeProgress()
	if err := s.companies.SaveCompany(ctx, c); err != nil {
		return nil, err
	}
	s.link(ctx, u, c)

	s.logger.Info("company created", zap.String("user_id", userID), zap.String("company_id", c.ID))
	return c, nil
}

// Update overwrites the company's contact fields with the request's
// non-empty values.
func (s *CompanyService) Update(ctx context.Context, userID string, req *domain.CompanyRequest) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.Update")
	defer span.End()

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.Apply(c)
	if err := s.companies.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}
	return c, nil
}

// EnsureCompany returns the caller's company, creating it on first use with
// the user's business name. The user's companyId pointer is written after
// the company; if that second write is lost the next call repairs it, since
// the lookup is by owner.
func (s *CompanyService) EnsureCompany(ctx context.Context, userID string) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.EnsureCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	c, err := s.companies.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		name := u.BusinessName
		if name == "" {
			name = u.Name
		}
		c = &domain.Company{OwnerID: userID, Name: name, Email: u.Email, Status: domain.CompanyStatusSetup}
		c.RecomputeProgress()
		if err := s.companies.SaveCompany(ctx, c); err != nil {
			var conflict *domain.ErrConflict
			if !errors.As(err, &conflict) {
				return nil, fmt.Errorf("create company: %w", err)
			}
			// Lost a race with a concurrent create; use the winner.
			if c, err = s.companies.FindCompanyByOwner(ctx, userID); err != nil || c == nil {
				return nil, fmt.Errorf("reload company: %w", errors.Join(conflict, err))
			}
		} else {
			s.logger.Info("company created on demand", zap.String("user_id", userID), zap.String("company_id", c.ID))
		}
	}

	s.link(ctx, u, c)
	return c, nil
}

func (s *CompanyService) load(ctx context.Context, userID string) (*domain.Company, error) {
	c, err := s.companies.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, &domain.ErrNotFound{Resource: "company", ID: userID}
	}
	return c, nil
}

// link points the user at c. Failures are logged only.
func (s *CompanyService) link(ctx context.Context, u *domain.User, c *domain.Company) {
	if u.CompanyID == c.ID {
		return
	}
	u.CompanyID = c.ID
	if err := s.users.SaveUser(ctx, u); err != nil {
		s.logger.Warn("failed to link company to user",
			zap.String("user_id", u.ID),
			zap.String("company_id", c.ID),
			zap.Error(err),
		)
	}
}
