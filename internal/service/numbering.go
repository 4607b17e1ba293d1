package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/port"
	"github.com/atendimentobr/atendimento-api/internal/saga"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var numberingTracer = otel.Tracer("service/numbering")

const (
	localitiesCacheKey = "localidades"
	defaultNumberLimit = 20
	maxNumberLimit     = 100
)

var areaCodeRegex = regexp.MustCompile(`^[0-9]{2}$`)

// NumberingService lists, reserves and acquires WhatsApp phone numbers.
type NumberingService struct {
	provider   port.NumberingProvider // nil when no provider is configured
	billing    port.BillingProvider   // nil when billing is disabled
	store      port.Store
	localities port.Cache[[]domain.Locality]
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewNumberingService creates the numbering service. provider and billing may
// be nil.
func NewNumberingService(
	provider port.NumberingProvider,
	billing port.BillingProvider,
	store port.Store,
	localities port.Cache[[]domain.Locality],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *NumberingService {
	return &NumberingService{
		provider:   provider,
		billing:    billing,
		store:      store,
		localities: localities,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *NumberingService) requireProvider() error {
	if s.provider == nil {
		return &domain.ErrUnavailable{Feature: "Numeração"}
	}
	return nil
}

// ListLocalities returns the provider's localities, cached.
func (s *NumberingService) ListLocalities(ctx context.Context) ([]domain.Locality, error) {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.ListLocalities")
	defer span.End()

	if err := s.requireProvider(); err != nil {
		return nil, err
	}

	if cached, ok := s.localities.Get(localitiesCacheKey); ok {
		s.metrics.IncrCacheHit("localities")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("localities")

	locs, err := s.provider.ListLocalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list localities: %w", err)
	}
	s.localities.Set(localitiesCacheKey, locs)
	return locs, nil
}

// ListNumbers returns up to limit available numbers in area code cn.
func (s *NumberingService) ListNumbers(ctx context.Context, cn string, limit int) ([]domain.AvailableNumber, error) {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.ListNumbers")
	defer span.End()
	span.SetAttributes(attribute.String("numbering.cn", cn))

	if err := s.requireProvider(); err != nil {
		return nil, err
	}
	if !areaCodeRegex.MatchString(cn) {
		return nil, &domain.ErrValidation{Field: "cn", Message: "cn deve ter 2 dígitos"}
	}
	if limit <= 0 {
		limit = defaultNumberLimit
	}
	if limit > maxNumberLimit {
		limit = maxNumberLimit
	}

	nums, err := s.provider.ListNumbers(ctx, cn, limit)
	if err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	return nums, nil
}

// Reserve holds a number for the caller's company without calling the
// provider. A company has at most one reserved record: reserving again
// updates it in place.
func (s *NumberingService) Reserve(ctx context.Context, userID string, req *domain.NumberRequest) (*domain.ReservedNumber, error) {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.Reserve")
	defer span.End()

	c, err := s.company(ctx, userID)
	if err != nil {
		return nil, err
	}

	n, err := s.store.FindReservedNumber(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("get reserved number: %w", err)
	}
	if n == nil {
		n = &domain.ReservedNumber{CompanyID: c.ID, Status: domain.NumberReserved}
	}
	n.Number = req.Number
	n.CN = req.CN
	n.AreaLocal = req.AreaLocal
	n.MonthlyFee = req.MonthlyFee
	n.SetupFee = req.SetupFee
	if err := s.store.SaveNumber(ctx, n); err != nil {
		return nil, fmt.Errorf("save reserved number: %w", err)
	}

	applyNumber(c, req)
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}

	s.logger.Info("number reserved",
		zap.String("company_id", c.ID),
		zap.String("number", req.Number),
	)
	return n, nil
}

// Acquire buys the number from the provider, creates the monthly fee product
// when billing is enabled, and records the purchase. A failed step undoes
// the ones before it.
func (s *NumberingService) Acquire(ctx context.Context, userID string, req *domain.NumberRequest) (*domain.AcquireResult, error) {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.Acquire")
	defer span.End()
	span.SetAttributes(attribute.String("numbering.number", req.Number))

	if err := s.requireProvider(); err != nil {
		return nil, err
	}
	c, err := s.company(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		order  *domain.ProviderOrder
		price  *domain.ProviderPrice
		result *domain.ReservedNumber
	)

	sg := saga.New("acquire_number", s.logger, s.metrics.IncrCompensation)
	sg.Add(saga.Step{
		Name: "provider_acquire",
		Do: func(ctx context.Context) error {
			o, err := s.provider.AcquireNumber(ctx, *req)
			order = o
			return err
		},
		Undo: func(ctx context.Context) error {
			return s.provider.CancelNumber(ctx, req.Number)
		},
	})
	if s.billing != nil && req.MonthlyFee > 0 {
		sg.Add(saga.Step{
			Name: "billing_price",
			Do: func(ctx context.Context) error {
				p, err := s.billing.CreateMonthlyPrice(ctx, domain.PriceRequest{
					Name:     "Número WhatsApp " + req.Number,
					Amount:   req.MonthlyFee,
					Currency: "brl",
					Metadata: map[string]string{"companyId": c.ID, "numero": req.Number},
				})
				price = p
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.billing.ArchiveProduct(ctx, price.ProductID)
			},
		})
	}
	sg.Add(saga.Step{
		Name: "persist",
		Do: func(ctx context.Context) error {
			n, err := s.recordAcquisition(ctx, c, req, order, price)
			result = n
			return err
		},
	})

	if err := sg.Run(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("number acquired",
		zap.String("company_id", c.ID),
		zap.String("number", req.Number),
		zap.String("order", order.OrderID),
	)
	return &domain.AcquireResult{Number: result, Company: c, Price: price}, nil
}

// Cancel releases a number at the provider and marks the local record.
func (s *NumberingService) Cancel(ctx context.Context, userID, number string) error {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.Cancel")
	defer span.End()

	if err := s.requireProvider(); err != nil {
		return err
	}
	c, err := s.company(ctx, userID)
	if err != nil {
		return err
	}

	nums, err := s.store.ListNumbers(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list numbers: %w", err)
	}
	var n *domain.ReservedNumber
	for i := range nums {
		if nums[i].Number == number && nums[i].Status != domain.NumberCanceled {
			n = &nums[i]
			break
		}
	}
	if n == nil {
		return &domain.ErrNotFound{Resource: "number", ID: number}
	}

	if n.Status == domain.NumberAcquired {
		if err := s.provider.CancelNumber(ctx, number); err != nil {
			return fmt.Errorf("cancel number: %w", err)
		}
		if n.StripeProductID != "" && s.billing != nil {
			if err := s.billing.ArchiveProduct(ctx, n.StripeProductID); err != nil {
				s.logger.Warn("failed to archive number product", zap.String("product", n.StripeProductID), zap.Error(err))
			}
		}
	}
	n.Status = domain.NumberCanceled
	if err := s.store.SaveNumber(ctx, n); err != nil {
		return fmt.Errorf("save number: %w", err)
	}
	return nil
}

// Numbers lists the caller's reserved and acquired numbers.
func (s *NumberingService) Numbers(ctx context.Context, userID string) ([]domain.ReservedNumber, error) {
	ctx, span := numberingTracer.Start(ctx, "NumberingService.Numbers")
	defer span.End()

	c, err := s.company(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListNumbers(ctx, c.ID)
}

func (s *NumberingService) recordAcquisition(ctx context.Context, c *domain.Company, req *domain.NumberRequest, order *domain.ProviderOrder, price *domain.ProviderPrice) (*domain.ReservedNumber, error) {
	n, err := s.store.FindReservedNumber(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("get reserved number: %w", err)
	}
	if n == nil || n.Number != req.Number {
		n = &domain.ReservedNumber{CompanyID: c.ID}
	}

	now := s.now().UTC()
	n.Number = req.Number
	n.CN = req.CN
	n.AreaLocal = req.AreaLocal
	n.MonthlyFee = req.MonthlyFee
	n.SetupFee = req.SetupFee
	n.Status = domain.NumberAcquired
	n.AcquiredAt = &now
	if order != nil {
		n.ProviderOrderID = order.OrderID
	}
	if price != nil {
		n.StripeProductID = price.ProductID
		n.StripePriceID = price.PriceID
	}
	if err := s.store.SaveNumber(ctx, n); err != nil {
		return nil, fmt.Errorf("save number: %w", err)
	}

	applyNumber(c, req)
	c.NumberPurchasedAt = &now
	if err := s.store.SaveCompany(ctx, c); err != nil {
		// The provider side is compensated by the saga; release the local
		// row too so it does not stay acquired.
		n.Status = domain.NumberCanceled
		if uerr := s.store.SaveNumber(ctx, n); uerr != nil {
			s.logger.Error("failed to release number after company save error",
				zap.String("number", n.Number),
				zap.Error(uerr),
			)
		}
		return nil, fmt.Errorf("save company: %w", err)
	}
	return n, nil
}

func (s *NumberingService) company(ctx context.Context, userID string) (*domain.Company, error) {
	c, err := s.store.FindCompanyByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, &domain.ErrNotFound{Resource: "company", ID: userID}
	}
	return c, nil
}

func applyNumber(c *domain.Company, req *domain.NumberRequest) {
	c.WhatsAppNumber = req.Number
	c.WhatsAppSetup = true
	c.CN = req.CN
	if req.AreaLocal != "" {
		c.AreaLocal = req.AreaLocal
	}
	c.RecomputeProgress()
}
