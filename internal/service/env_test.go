package service_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/cache"
	"github.com/atendimentobr/atendimento-api/internal/infra/mail"
	"github.com/atendimentobr/atendimento-api/internal/infra/memstore"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/infra/payments"
	"github.com/atendimentobr/atendimento-api/internal/plans"
	"github.com/atendimentobr/atendimento-api/internal/port"
	"github.com/atendimentobr/atendimento-api/internal/service"

	"go.uber.org/zap"
)

// --- Fakes ---

type fakeNumbering struct {
	mu         sync.Mutex
	localities []domain.Locality
	acquireErr error
	cancelErr  error
	listCalls  int
	acquired   []string
	canceled   []string
}

func (f *fakeNumbering) ListLocalities(context.Context) ([]domain.Locality, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.localities, nil
}

func (f *fakeNumbering) ListNumbers(_ context.Context, cn string, limit int) ([]domain.AvailableNumber, error) {
	out := make([]domain.AvailableNumber, 0, limit)
	for i := 0; i < limit && i < 3; i++ {
		out = append(out, domain.AvailableNumber{Number: cn + "3000000" + string(rune('0'+i)), CN: cn})
	}
	return out, nil
}

func (f *fakeNumbering) AcquireNumber(_ context.Context, req domain.NumberRequest) (*domain.ProviderOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired = append(f.acquired, req.Number)
	return &domain.ProviderOrder{OrderID: "ord-1", Number: req.Number, Status: "ativo"}, nil
}

func (f *fakeNumbering) CancelNumber(_ context.Context, number string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, number)
	return f.cancelErr
}

// failingPrices makes CreateMonthlyPrice fail on top of the mock provider.
type failingPrices struct {
	*payments.MockProvider
}

func (failingPrices) CreateMonthlyPrice(context.Context, domain.PriceRequest) (*domain.ProviderPrice, error) {
	return nil, &domain.ErrExternalService{Service: "stripe", Err: errors.New("card_declined")}
}

// --- Environment ---

type env struct {
	store     *memstore.Store
	provider  *payments.MockProvider
	brdid     *fakeNumbering
	mailer    *mail.LogMailer
	metrics   *observability.Metrics
	tokens    *service.TokenIssuer
	auth      *service.AuthService
	profile   *service.ProfileService
	companies *service.CompanyService
	numbering *service.NumberingService
	billing   *service.BillingService
	onboard   *service.OnboardingService
	dashboard *service.DashboardService
}

type envOption func(*envConfig)

type envConfig struct {
	mode    domain.BillingMode
	billing port.BillingProvider
}

func withMode(m domain.BillingMode) envOption {
	return func(c *envConfig) { c.mode = m }
}

func withBillingProvider(p port.BillingProvider) envOption {
	return func(c *envConfig) { c.billing = p }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	logger := zap.NewNop()

	e := &env{
		store:    memstore.New(),
		provider: payments.NewMockProvider("", "http://app.test", logger),
		brdid:    &fakeNumbering{localities: []domain.Locality{{CN: "11", AreaLocal: "São Paulo", State: "SP", Available: 42}}},
		mailer:   mail.NewLogMailer(logger),
		metrics:  observability.NewMetrics(),
		tokens:   service.NewTokenIssuer("test-secret-0123456789", 7*24*time.Hour),
	}

	cfg := envConfig{mode: domain.BillingMock, billing: e.provider}
	for _, o := range opts {
		o(&cfg)
	}
	billingProvider := cfg.billing
	if cfg.mode == domain.BillingDisabled {
		billingProvider = nil
	}

	localities := cache.New[[]domain.Locality](time.Minute)
	dedupe := cache.NewDeduper(time.Hour)
	t.Cleanup(func() {
		localities.Close()
		dedupe.Close()
	})

	e.auth = service.NewAuthService(e.store, e.tokens, e.mailer, logger)
	e.profile = service.NewProfileService(e.store, logger)
	e.companies = service.NewCompanyService(e.store, e.store, logger)
	e.numbering = service.NewNumberingService(e.brdid, billingProvider, e.store, localities, e.metrics, logger)
	e.billing = service.NewBillingService(service.BillingConfig{
		Mode:      cfg.mode,
		Provider:  billingProvider,
		Catalog:   plans.Default(),
		Store:     e.store,
		Companies: e.companies,
		Dedupe:    dedupe,
		AppURL:    "http://app.test",
		Metrics:   e.metrics,
		Logger:    logger,
	})
	e.onboard = service.NewOnboardingService(e.store, e.companies, e.numbering, cfg.mode, e.metrics, logger)
	e.dashboard = service.NewDashboardService(e.store, e.billing, logger)
	return e
}

// register creates a user and returns its id.
func (e *env) register(t *testing.T, email string) string {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), &domain.RegisterRequest{
		Email:    email,
		Password: "Senha123",
		Name:     "Ana Souza",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return resp.User.ID
}

var codeRegex = regexp.MustCompile(`<strong>([0-9]{6})</strong>`)

// verifyEmail runs the verification flow through the log mailer.
func (e *env) verifyEmail(t *testing.T, userID, email string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.auth.RequestEmailVerification(ctx, userID); err != nil {
		t.Fatalf("request verification: %v", err)
	}
	msg, ok := e.mailer.Last(email)
	if !ok {
		t.Fatal("expected verification e-mail")
	}
	m := codeRegex.FindStringSubmatch(msg.Body)
	if m == nil {
		t.Fatalf("no code in %q", msg.Body)
	}
	if _, err := e.auth.ConfirmEmail(ctx, userID, m[1]); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

func kindOf(err error) domain.ErrorKind { return domain.KindOf(err) }
