package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
)

func signedEvent(t *testing.T, e *env, id, typ string, object map[string]any) ([]byte, string) {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"created":     1700000000,
		"api_version": "2023-10-16",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b, e.provider.SignPayload(b)
}

func trialCheckout(userID string) map[string]any {
	return map[string]any{
		"id":             "cs_trial_1",
		"object":         "checkout.session",
		"payment_status": "no_payment_required",
		"customer":       "cus_1",
		"subscription":   "sub_trial_1",
		"metadata":       map[string]string{"userId": userID, "planId": "starter", "trial": "true"},
	}
}

func TestWebhook_TrialCheckoutCreatesOneTrialingSubscription(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	payload, sig := signedEvent(t, e, "evt_trial_1", domain.EventCheckoutCompleted, trialCheckout(id))

	ack, err := e.billing.HandleWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if !ack.Received || ack.Duplicate {
		t.Errorf("unexpected ack %+v", ack)
	}

	// Provider retry of the same event.
	ack, err = e.billing.HandleWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ack.Duplicate {
		t.Error("expected replay to be reported as duplicate")
	}

	if n := e.store.SubscriptionCount(id); n != 1 {
		t.Fatalf("expected exactly one subscription, got %d", n)
	}
	sub, _ := e.store.FindSubscriptionByUser(ctx, id)
	if sub.Status != domain.SubscriptionTrialing {
		t.Errorf("expected trialing, got %q", sub.Status)
	}
	if sub.TrialStart == nil || sub.TrialEnd == nil || sub.TrialEnd.Sub(*sub.TrialStart) != 7*24*time.Hour {
		t.Errorf("expected 7-day trial window, got %v - %v", sub.TrialStart, sub.TrialEnd)
	}

	u, _ := e.auth.Me(ctx, id)
	if u.SubscriptionStatus != domain.SubscriptionTrialing || u.SubscriptionID != sub.ID {
		t.Errorf("user mirror not updated: %+v", u)
	}

	// A distinct event for the same provider subscription updates in place.
	again, sig2 := signedEvent(t, e, "evt_trial_2", domain.EventCheckoutCompleted, trialCheckout(id))
	if _, err := e.billing.HandleWebhook(ctx, again, sig2); err != nil {
		t.Fatal(err)
	}
	if n := e.store.SubscriptionCount(id); n != 1 {
		t.Errorf("expected one subscription after second event, got %d", n)
	}

	snap := e.metrics.GetOnboardingSnapshot()
	if snap.WebhookEvents["duplicate"] != 1 || snap.WebhookEvents["processed"] != 2 {
		t.Errorf("unexpected webhook metrics %+v", snap.WebhookEvents)
	}
}

func TestWebhook_TrialCheckoutAdoptsLocalTrial(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	local, err := e.billing.StartTrial(ctx, id, "starter")
	if err != nil {
		t.Fatal(err)
	}

	payload, sig := signedEvent(t, e, "evt_trial_local", domain.EventCheckoutCompleted, trialCheckout(id))
	if _, err := e.billing.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	if n := e.store.SubscriptionCount(id); n != 1 {
		t.Fatalf("expected exactly one subscription, got %d", n)
	}
	sub, _ := e.store.FindSubscriptionByUser(ctx, id)
	if sub.ID != local.ID || sub.ProviderSubscription != "sub_trial_1" {
		t.Errorf("expected local trial %s linked to sub_trial_1, got %+v", local.ID, sub)
	}
	if sub.Status != domain.SubscriptionTrialing || !sub.TrialEnd.Equal(*local.TrialEnd) {
		t.Errorf("trial window changed: %+v", sub)
	}
}

func TestWebhook_BadSignature(t *testing.T) {
	e := newEnv(t)
	payload, _ := signedEvent(t, e, "evt_1", domain.EventCheckoutCompleted, trialCheckout("u1"))

	_, err := e.billing.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestWebhook_SubscriptionLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	start, end := int64(1700000000), int64(1702592000)
	sub := map[string]any{
		"id":                   "sub_live_1",
		"object":               "subscription",
		"status":               "active",
		"customer":             "cus_1",
		"current_period_start": start,
		"current_period_end":   end,
		"metadata":             map[string]string{"userId": id, "planId": "professional"},
	}
	payload, sig := signedEvent(t, e, "evt_sub_1", domain.EventSubscriptionCreated, sub)
	if _, err := e.billing.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatal(err)
	}

	sub["status"] = "past_due"
	payload, sig = signedEvent(t, e, "evt_sub_2", domain.EventSubscriptionUpdated, sub)
	if _, err := e.billing.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatal(err)
	}

	local, _ := e.store.FindSubscriptionByProviderID(ctx, "sub_live_1")
	if local == nil || local.Status != domain.SubscriptionPastDue || local.PlanID != "professional" {
		t.Fatalf("unexpected subscription %+v", local)
	}
	if local.CurrentPeriodEnd == nil || local.CurrentPeriodEnd.Unix() != end {
		t.Errorf("expected period end %d, got %v", end, local.CurrentPeriodEnd)
	}
	if n := e.store.SubscriptionCount(id); n != 1 {
		t.Errorf("expected one subscription, got %d", n)
	}

	payload, sig = signedEvent(t, e, "evt_sub_3", domain.EventSubscriptionDeleted, sub)
	if _, err := e.billing.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatal(err)
	}
	local, _ = e.store.FindSubscriptionByProviderID(ctx, "sub_live_1")
	if local.Status != domain.SubscriptionCanceled || local.CanceledAt == nil {
		t.Errorf("expected canceled subscription, got %+v", local)
	}
	u, _ := e.auth.Me(ctx, id)
	if u.SubscriptionStatus != domain.SubscriptionCanceled {
		t.Errorf("expected user mirror canceled, got %q", u.SubscriptionStatus)
	}
}

func TestWebhook_MissingUserIsAcknowledged(t *testing.T) {
	e := newEnv(t)
	payload, sig := signedEvent(t, e, "evt_orphan", domain.EventSubscriptionUpdated, map[string]any{
		"id":     "sub_orphan",
		"object": "subscription",
		"status": "active",
	})

	ack, err := e.billing.HandleWebhook(context.Background(), payload, sig)
	if err != nil || !ack.Received {
		t.Fatalf("expected ack, got %+v, %v", ack, err)
	}
	if e.metrics.GetOnboardingSnapshot().WebhookEvents["ignored"] != 1 {
		t.Error("expected ignored outcome")
	}
}

func TestWebhook_BranchFailureIsInternal(t *testing.T) {
	e := newEnv(t)
	// Paid checkout for a user that does not exist fails in the branch.
	payload, sig := signedEvent(t, e, "evt_ghost", domain.EventCheckoutCompleted, map[string]any{
		"id":             "cs_ghost",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "ghost", "planId": "starter"},
	})

	_, err := e.billing.HandleWebhook(context.Background(), payload, sig)
	if err == nil || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	// Not remembered: the provider retry is processed again.
	_, err = e.billing.HandleWebhook(context.Background(), payload, sig)
	if err == nil {
		t.Error("expected retry to be reprocessed and fail again")
	}
}

func TestActivate_UnpaidSessionIsConflictWithoutMutation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	sess, err := e.billing.CreateCheckoutSession(ctx, id, &domain.CreateCheckoutRequest{PlanID: "starter"})
	if err != nil {
		t.Fatal(err)
	}
	e.provider.SetPaymentStatus(sess.ID, domain.PaymentStatusUnpaid)
	before, _ := e.companies.Get(ctx, id)

	_, err = e.billing.Activate(ctx, id, sess.ID)
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	after, _ := e.companies.Get(ctx, id)
	if after.Status != before.Status || after.PaymentSetup || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("company mutated: before %+v after %+v", before, after)
	}
	if n := e.store.SubscriptionCount(id); n != 0 {
		t.Errorf("expected no subscription, got %d", n)
	}
}

func TestActivate_OtherUsersSessionIsForbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.register(t, "ana@example.com")
	other := e.register(t, "bia@example.com")

	sess, err := e.billing.CreateCheckoutSession(ctx, owner, &domain.CreateCheckoutRequest{PlanID: "starter"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.billing.Activate(ctx, other, sess.ID); domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestActivate_OtherUsersUnpaidSessionIsForbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.register(t, "ana@example.com")
	other := e.register(t, "bia@example.com")

	sess, err := e.billing.CreateCheckoutSession(ctx, owner, &domain.CreateCheckoutRequest{PlanID: "starter"})
	if err != nil {
		t.Fatal(err)
	}
	e.provider.SetPaymentStatus(sess.ID, domain.PaymentStatusUnpaid)

	if _, err := e.billing.Activate(ctx, other, sess.ID); domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("expected forbidden before payment check, got %v", err)
	}
}

func TestActivate_PaidSessionActivates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	sess, err := e.billing.CreateCheckoutSession(ctx, id, &domain.CreateCheckoutRequest{PlanID: "enterprise"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.billing.Activate(ctx, id, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Company.Status != domain.CompanyStatusActive || !res.Company.PaymentSetup {
		t.Errorf("unexpected company %+v", res.Company)
	}
	if res.Subscription.Status != domain.SubscriptionActive || res.Subscription.PlanID != "enterprise" {
		t.Errorf("unexpected subscription %+v", res.Subscription)
	}

	st, err := e.billing.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasSubscription || st.Plan == nil || st.Plan.ID != "enterprise" || st.BillingMode != "mock" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestEnsureCustomer_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	first, _, err := e.billing.EnsureCustomer(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := e.billing.EnsureCustomer(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" || first != second {
		t.Errorf("expected stable customer id, got %q and %q", first, second)
	}
}

func TestCreatePaymentIntent_CreatesCompanyOnDemand(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	pi, err := e.billing.CreatePaymentIntent(ctx, id, "professional")
	if err != nil {
		t.Fatal(err)
	}
	if pi.Amount != 19700 || pi.Currency != "brl" || pi.ClientSecret == "" {
		t.Errorf("unexpected intent %+v", pi)
	}

	c, err := e.companies.Get(ctx, id)
	if err != nil {
		t.Fatalf("expected company to exist: %v", err)
	}
	if c.StripeCustomerID != pi.CustomerID {
		t.Errorf("expected customer %q on company, got %q", pi.CustomerID, c.StripeCustomerID)
	}
	u, _ := e.auth.Me(ctx, id)
	if u.CompanyID != c.ID {
		t.Errorf("expected user linked to company")
	}

	if _, err := e.billing.CreatePaymentIntent(ctx, id, "gold"); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected invalid plan, got %v", err)
	}
}

func TestDisabledMode(t *testing.T) {
	e := newEnv(t, withMode(domain.BillingDisabled))
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	var unavailable *domain.ErrUnavailable
	if _, err := e.billing.CreatePaymentIntent(ctx, id, "starter"); !errors.As(err, &unavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
	if _, err := e.billing.Activate(ctx, id, "cs_1"); !errors.As(err, &unavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
	if _, err := e.billing.HandleWebhook(ctx, []byte("{}"), ""); !errors.As(err, &unavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}

	// Local operations still work.
	if _, err := e.billing.StartTrial(ctx, id, "starter"); err != nil {
		t.Errorf("start trial: %v", err)
	}
	st, err := e.billing.Status(ctx, id)
	if err != nil || st.BillingMode != "disabled" || !st.IsTrialing {
		t.Errorf("unexpected status %+v, %v", st, err)
	}
}

func TestStartTrialAndCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	if _, err := e.billing.Cancel(ctx, id, &domain.CancelRequest{}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found without subscription, got %v", err)
	}

	sub, err := e.billing.StartTrial(ctx, id, "starter")
	if err != nil {
		t.Fatal(err)
	}
	if sub.TrialEnd.Sub(*sub.TrialStart) != 7*24*time.Hour {
		t.Errorf("unexpected trial window")
	}
	if _, err := e.billing.StartTrial(ctx, id, "starter"); domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict on second trial, got %v", err)
	}

	st, _ := e.billing.Status(ctx, id)
	if st.TrialDaysLeft != 7 {
		t.Errorf("expected 7 trial days left, got %d", st.TrialDaysLeft)
	}

	sub, err = e.billing.Cancel(ctx, id, &domain.CancelRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !sub.CancelAtPeriodEnd || sub.Status != domain.SubscriptionTrialing {
		t.Errorf("expected cancel at period end, got %+v", sub)
	}

	sub, err = e.billing.Cancel(ctx, id, &domain.CancelRequest{Immediately: true})
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != domain.SubscriptionCanceled || sub.CanceledAt == nil {
		t.Errorf("expected canceled, got %+v", sub)
	}
	if _, err := e.billing.Cancel(ctx, id, &domain.CancelRequest{}); domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict on canceled subscription, got %v", err)
	}
}

func TestCancel_ProviderSubscription(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	sess, err := e.billing.CreateCheckoutSession(ctx, id, &domain.CreateCheckoutRequest{PlanID: "starter"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.billing.Activate(ctx, id, sess.ID); err != nil {
		t.Fatal(err)
	}

	sub, err := e.billing.Cancel(ctx, id, &domain.CancelRequest{Immediately: true})
	if err != nil {
		t.Fatal(err)
	}
	ps, err := e.provider.GetSubscription(ctx, sess.SubscriptionID)
	if err != nil {
		t.Fatal(err)
	}
	if ps.Status != domain.SubscriptionCanceled || sub.Status != domain.SubscriptionCanceled {
		t.Errorf("expected provider and local canceled, got %q and %q", ps.Status, sub.Status)
	}
}

func TestDashboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.register(t, "ana@example.com")

	d, err := e.dashboard.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if d.User.ID != id || d.Company != nil || d.Progress.AllComplete || d.Subscription.Status != domain.SubscriptionInactive {
		t.Errorf("unexpected dashboard %+v", d)
	}

	if _, err := e.dashboard.Get(ctx, "missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}
