// Package payments implements port.BillingProvider on Stripe, plus an
// in-process mock with the same event decoding.
package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/stripe/stripe-go/v76"
)

// Metadata keys carried by checkout sessions and subscriptions.
const (
	metaUserID = "userId"
	metaPlanID = "planId"
	metaTrial  = "trial"
)

func metadataMap(md domain.CheckoutMetadata) map[string]string {
	return map[string]string{
		metaUserID: md.UserID,
		metaPlanID: md.PlanID,
		metaTrial:  strconv.FormatBool(md.Trial),
	}
}

func parseMetadata(m map[string]string) domain.CheckoutMetadata {
	trial, _ := strconv.ParseBool(m[metaTrial])
	return domain.CheckoutMetadata{
		UserID: m[metaUserID],
		PlanID: m[metaPlanID],
		Trial:  trial,
	}
}

// unix converts a Stripe timestamp; 0 means unset and yields the zero time.
func unix(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func unixPtr(ts int64) *time.Time {
	t := unix(ts)
	if t.IsZero() {
		return nil
	}
	return &t
}

func toSession(s *stripe.CheckoutSession) *domain.CheckoutSession {
	out := &domain.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      parseMetadata(s.Metadata),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func toSubscription(s *stripe.Subscription) *domain.ProviderSubscription {
	out := &domain.ProviderSubscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		CurrentPeriodStart: unix(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(s.CurrentPeriodEnd),
		TrialStart:         unixPtr(s.TrialStart),
		TrialEnd:           unixPtr(s.TrialEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         unixPtr(s.CanceledAt),
		Metadata:           parseMetadata(s.Metadata),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		out.PriceID = s.Items.Data[0].Price.ID
	}
	return out
}

// decodeEvent turns a verified stripe.Event into a domain event. Unknown
// types are returned with neither Session nor Subscription set.
func decodeEvent(evt stripe.Event) (*domain.BillingEvent, error) {
	out := &domain.BillingEvent{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: unix(evt.Created),
	}
	if evt.Data != nil {
		out.Raw = evt.Data.Raw
	}

	switch out.Type {
	case domain.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(out.Raw, &s); err != nil {
			return nil, &domain.ErrValidation{Message: fmt.Sprintf("evento %s malformado", out.Type)}
		}
		out.Session = toSession(&s)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(out.Raw, &s); err != nil {
			return nil, &domain.ErrValidation{Message: fmt.Sprintf("evento %s malformado", out.Type)}
		}
		out.Subscription = toSubscription(&s)
	}
	return out, nil
}
