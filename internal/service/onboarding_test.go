package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/service"
)

func TestDeriveProgress_AllCompleteNeedsEveryStep(t *testing.T) {
	full := func() *domain.Company {
		return &domain.Company{
			Name:           "Padaria",
			WhatsAppNumber: "5511999990000",
			MetaBusinessID: "123456",
			Status:         domain.CompanyStatusActive,
		}
	}

	cases := []struct {
		name    string
		company *domain.Company
		want    bool
	}{
		{"no company", nil, false},
		{"all set", full(), true},
		{"no number", func() *domain.Company { c := full(); c.WhatsAppNumber = ""; return c }(), false},
		{"no meta", func() *domain.Company { c := full(); c.MetaBusinessID = ""; return c }(), false},
		{"not active", func() *domain.Company { c := full(); c.Status = domain.CompanyStatusSetup; return c }(), false},
		{"unverified number still counts", func() *domain.Company { c := full(); c.WhatsAppVerified = false; return c }(), true},
		{"pending meta still counts", func() *domain.Company { c := full(); c.MetaBusinessStatus = domain.MetaStatusPending; return c }(), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := service.DeriveProgress(tc.company)
			if p.AllComplete != tc.want {
				t.Errorf("AllComplete = %v, want %v (steps %+v)", p.AllComplete, tc.want, p.Steps)
			}
		})
	}
}

func TestDeriveLegacyProgress(t *testing.T) {
	u := &domain.User{ProfileComplete: true, SubscriptionStatus: domain.SubscriptionInactive}
	p := service.DeriveLegacyProgress(u)
	if p.CompletedSteps != 1 || p.Percentage != 33 || p.NextStep != "verify-email" {
		t.Errorf("unexpected legacy progress %+v", p)
	}

	u.IsEmailVerified = true
	u.SubscriptionStatus = domain.SubscriptionTrialing
	p = service.DeriveLegacyProgress(u)
	if p.CompletedSteps != 3 || p.Percentage != 100 || p.NextStep != "" {
		t.Errorf("unexpected legacy progress %+v", p)
	}
}

func TestProgress_UnknownUser(t *testing.T) {
	e := newEnv(t)
	if _, err := e.onboard.Progress(context.Background(), "nope"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBusinessInfo_SetsFlagsAndProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	c, err := e.onboard.BusinessInfo(ctx, id, &domain.BusinessInfoRequest{
		CompanyRequest: domain.CompanyRequest{Name: "Padaria da Ana", City: "Campinas"},
		BusinessType:   "food",
		OwnerPhone:     "11999990000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !c.ProfileSetup || c.SetupProgress != 25 || c.Name != "Padaria da Ana" {
		t.Errorf("unexpected company %+v", c)
	}

	u, _ := e.auth.Me(ctx, id)
	if !u.ProfileComplete || u.BusinessName != "Padaria da Ana" || u.CompanyID != c.ID {
		t.Errorf("unexpected user %+v", u)
	}

	// Running the step again keeps a single company.
	again, err := e.onboard.BusinessInfo(ctx, id, &domain.BusinessInfoRequest{CompanyRequest: domain.CompanyRequest{Name: "Padaria Nova"}})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != c.ID {
		t.Errorf("expected same company, got %s and %s", c.ID, again.ID)
	}
}

func TestAutomationSetup_StoresPrefs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	if _, err := e.onboard.AutomationSetup(ctx, id, &domain.AutomationSetupRequest{}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found without company, got %v", err)
	}

	if _, err := e.companies.EnsureCompany(ctx, id); err != nil {
		t.Fatal(err)
	}
	c, err := e.onboard.AutomationSetup(ctx, id, &domain.AutomationSetupRequest{WelcomeMessage: "Olá!", AutoReply: true})
	if err != nil {
		t.Fatal(err)
	}
	var prefs domain.AutomationSetupRequest
	if err := json.Unmarshal(c.AutomationPrefs, &prefs); err != nil {
		t.Fatal(err)
	}
	if prefs.WelcomeMessage != "Olá!" || !prefs.AutoReply || !c.AutomationSetup {
		t.Errorf("unexpected company %+v", c)
	}
}

func missingOf(t *testing.T, err error) []string {
	t.Helper()
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	return conflict.Missing
}

func TestComplete_Gating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	_, err := e.onboard.Complete(ctx, id)
	if got := missingOf(t, err); len(got) != 2 {
		t.Fatalf("expected email and profile missing, got %v", got)
	}

	e.verifyEmail(t, id, "ana@example.com")
	_, err = e.onboard.Complete(ctx, id)
	if got := missingOf(t, err); len(got) != 1 || got[0] != service.MissingProfile {
		t.Fatalf("expected profile missing, got %v", got)
	}

	if _, err := e.onboard.BusinessInfo(ctx, id, &domain.BusinessInfoRequest{
		CompanyRequest: domain.CompanyRequest{Name: "Padaria"},
		OwnerPhone:     "11999990000",
	}); err != nil {
		t.Fatal(err)
	}

	// Mock billing does not require payment.
	resp, err := e.onboard.Complete(ctx, id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !resp.User.OnboardingComplete {
		t.Error("expected onboardingComplete")
	}
}

func TestComplete_LiveModeRequiresPayment(t *testing.T) {
	e := newEnv(t, withMode(domain.BillingLive))
	ctx := context.Background()
	id := e.register(t, "ana@example.com")
	e.verifyEmail(t, id, "ana@example.com")
	if _, err := e.onboard.BusinessInfo(ctx, id, &domain.BusinessInfoRequest{
		CompanyRequest: domain.CompanyRequest{Name: "Padaria"},
		OwnerPhone:     "11999990000",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := e.onboard.Complete(ctx, id)
	if got := missingOf(t, err); len(got) != 1 || got[0] != service.MissingPayment {
		t.Fatalf("expected payment missing, got %v", got)
	}

	sess, err := e.billing.CreateCheckoutSession(ctx, id, &domain.CreateCheckoutRequest{PlanID: "starter"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.billing.Activate(ctx, id, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.onboard.Complete(ctx, id); err != nil {
		t.Fatalf("expected completion after payment, got %v", err)
	}
}

func TestOnboarding_FullWizard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	steps := []func() error{
		func() error {
			_, err := e.onboard.BusinessInfo(ctx, id, &domain.BusinessInfoRequest{CompanyRequest: domain.CompanyRequest{Name: "Padaria"}})
			return err
		},
		func() error {
			_, err := e.onboard.WhatsAppNumber(ctx, id, &domain.NumberRequest{Number: "5511999990000", CN: "11"})
			return err
		},
		func() error {
			_, err := e.onboard.MetaBusiness(ctx, id, &domain.MetaBusinessRequest{MetaBusinessID: "1234567"})
			return err
		},
		func() error {
			_, err := e.onboard.AutomationSetup(ctx, id, &domain.AutomationSetupRequest{AutoReply: true})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	p, err := e.onboard.Progress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Steps.Company.Completed || !p.Steps.WhatsApp.Completed || !p.Steps.Meta.Completed {
		t.Errorf("unexpected steps %+v", p.Steps)
	}
	if p.Steps.Meta.Status != domain.MetaStatusPending {
		t.Errorf("expected pending meta status, got %q", p.Steps.Meta.Status)
	}
	if p.AllComplete {
		t.Error("payment is still missing")
	}

	sess, err := e.billing.CreateCheckoutSession(ctx, id, &domain.CreateCheckoutRequest{PlanID: "professional"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.billing.Activate(ctx, id, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Company.SetupProgress != 100 {
		t.Errorf("expected 100%% setup, got %d", res.Company.SetupProgress)
	}

	p, _ = e.onboard.Progress(ctx, id)
	if !p.AllComplete {
		t.Errorf("expected all complete, got %+v", p.Steps)
	}

	snap := e.metrics.GetOnboardingSnapshot()
	if snap.StepsCompleted["payment"] != 1 || snap.StepsCompleted["business_info"] != 1 {
		t.Errorf("unexpected step metrics %+v", snap.StepsCompleted)
	}
}
