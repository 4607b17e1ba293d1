package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/memstore"
	"github.com/atendimentobr/atendimento-api/internal/saga"
	"github.com/atendimentobr/atendimento-api/internal/service"

	"go.uber.org/zap"
)

func withCompany(t *testing.T, e *env) string {
	t.Helper()
	id := e.register(t, "ana@example.com")
	if _, err := e.companies.EnsureCompany(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestReserve_IdempotentPerCompany(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := withCompany(t, e)

	first, err := e.numbering.Reserve(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.numbering.Reserve(ctx, id, &domain.NumberRequest{Number: "5511999991111", CN: "11", AreaLocal: "São Paulo"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the reservation to be updated in place, got %s and %s", first.ID, second.ID)
	}

	nums, err := e.numbering.Numbers(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(nums) != 1 || nums[0].Number != "5511999991111" {
		t.Errorf("expected one reservation for the latest number, got %+v", nums)
	}

	c, _ := e.companies.Get(ctx, id)
	if c.WhatsAppNumber != "5511999991111" || !c.WhatsAppSetup || c.AreaLocal != "São Paulo" {
		t.Errorf("unexpected company %+v", c)
	}
	if len(e.brdid.acquired) != 0 {
		t.Error("reservation must not call the provider")
	}
}

func TestReserve_WithoutCompany(t *testing.T) {
	e := newEnv(t)
	id := e.register(t, "ana@example.com")

	_, err := e.numbering.Reserve(context.Background(), id, &domain.NumberRequest{Number: "5511999990000", CN: "11"})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAcquire_CreatesPriceAndRecordsPurchase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := withCompany(t, e)

	if _, err := e.numbering.Reserve(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11"}); err != nil {
		t.Fatal(err)
	}
	res, err := e.numbering.Acquire(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11", MonthlyFee: 2990})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if res.Number.Status != domain.NumberAcquired || res.Number.ProviderOrderID != "ord-1" || res.Number.AcquiredAt == nil {
		t.Errorf("unexpected number %+v", res.Number)
	}
	if res.Price == nil || !e.provider.ProductActive(res.Price.ProductID) {
		t.Errorf("expected an active monthly product, got %+v", res.Price)
	}
	if res.Company.NumberPurchasedAt == nil {
		t.Error("expected purchase date on company")
	}

	nums, _ := e.numbering.Numbers(ctx, id)
	if len(nums) != 1 {
		t.Errorf("expected the reservation to become the purchase, got %d records", len(nums))
	}
}

func TestAcquire_PriceFailureCancelsNumber(t *testing.T) {
	e := newEnv(t)
	e = newEnv(t, withBillingProvider(failingPrices{e.provider}))
	ctx := context.Background()
	id := withCompany(t, e)

	_, err := e.numbering.Acquire(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11", MonthlyFee: 2990})
	if err == nil {
		t.Fatal("expected error")
	}

	var sagaErr *saga.Error
	if !errors.As(err, &sagaErr) || sagaErr.Step != "billing_price" {
		t.Fatalf("expected billing_price step failure, got %v", err)
	}
	if domain.KindOf(err) != domain.KindUpstream {
		t.Errorf("expected upstream kind, got %v", domain.KindOf(err))
	}
	if len(e.brdid.canceled) != 1 || e.brdid.canceled[0] != "5511999990000" {
		t.Errorf("expected provider cancellation, got %v", e.brdid.canceled)
	}
	if got := e.metrics.GetOnboardingSnapshot().Compensations; got != 1 {
		t.Errorf("expected one compensation, got %v", got)
	}

	nums, _ := e.numbering.Numbers(ctx, id)
	if len(nums) != 0 {
		t.Errorf("nothing should be persisted, got %+v", nums)
	}
}

// companySaveFails lets number writes through but rejects company updates.
type companySaveFails struct {
	*memstore.Store
}

func (companySaveFails) SaveCompany(context.Context, *domain.Company) error {
	return errors.New("connection reset")
}

func TestAcquire_PersistFailureReleasesNumber(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := withCompany(t, e)

	svc := service.NewNumberingService(e.brdid, e.provider, companySaveFails{e.store}, nil, e.metrics, zap.NewNop())
	_, err := svc.Acquire(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11", MonthlyFee: 2990})

	var sagaErr *saga.Error
	if !errors.As(err, &sagaErr) || sagaErr.Step != "persist" {
		t.Fatalf("expected persist step failure, got %v", err)
	}
	if len(e.brdid.canceled) != 1 {
		t.Errorf("expected provider cancellation, got %v", e.brdid.canceled)
	}

	nums, _ := e.numbering.Numbers(ctx, id)
	for _, n := range nums {
		if n.Status == domain.NumberAcquired {
			t.Errorf("number left acquired after failed persist: %+v", n)
		}
	}
}

func TestAcquire_ZeroFeeSkipsPrice(t *testing.T) {
	e := newEnv(t)
	e = newEnv(t, withBillingProvider(failingPrices{e.provider}))
	id := withCompany(t, e)

	res, err := e.numbering.Acquire(context.Background(), id, &domain.NumberRequest{Number: "5511999990000", CN: "11"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if res.Price != nil {
		t.Errorf("expected no price, got %+v", res.Price)
	}
}

func TestAcquire_ProviderFailure(t *testing.T) {
	e := newEnv(t)
	e.brdid.acquireErr = &domain.ErrExternalService{Service: "brdid", Err: errors.New("sem estoque")}
	id := withCompany(t, e)

	_, err := e.numbering.Acquire(context.Background(), id, &domain.NumberRequest{Number: "5511999990000", CN: "11", MonthlyFee: 2990})
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(e.brdid.canceled) != 0 {
		t.Errorf("nothing to undo, got %v", e.brdid.canceled)
	}
}

func TestListLocalities_Cached(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		locs, err := e.numbering.ListLocalities(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(locs) != 1 || locs[0].CN != "11" {
			t.Fatalf("unexpected localities %+v", locs)
		}
	}
	if e.brdid.listCalls != 1 {
		t.Errorf("expected one provider call, got %d", e.brdid.listCalls)
	}
}

func TestListNumbers_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.numbering.ListNumbers(ctx, "1", 10); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	nums, err := e.numbering.ListNumbers(ctx, "21", 0)
	if err != nil || len(nums) != 3 {
		t.Errorf("unexpected numbers %+v, %v", nums, err)
	}
}

func TestNumbering_WithoutProvider(t *testing.T) {
	svc := service.NewNumberingService(nil, nil, memstore.New(), nil, nil, zap.NewNop())

	var unavailable *domain.ErrUnavailable
	if _, err := svc.ListLocalities(context.Background()); !errors.As(err, &unavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
	if _, err := svc.Acquire(context.Background(), "u1", &domain.NumberRequest{}); !errors.As(err, &unavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestCancelNumber(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := withCompany(t, e)

	res, err := e.numbering.Acquire(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11", MonthlyFee: 2990})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.numbering.Cancel(ctx, id, "5511999990000"); err != nil {
		t.Fatal(err)
	}
	if e.provider.ProductActive(res.Price.ProductID) {
		t.Error("expected product archived")
	}
	if err := e.numbering.Cancel(ctx, id, "5511999990000"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found for canceled number, got %v", err)
	}
}
