package service

import (
	"context"
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Webhook outcomes reported to metrics.
const (
	webhookProcessed = "processed"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookFailed    = "failed"
)

// HandleWebhook verifies and applies one provider event. A bad signature is
// a validation error. Events already processed are acknowledged without side
// effects. A failing branch returns an internal error so the provider
// retries; the event is only remembered once it succeeded.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookAck, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.HandleWebhook")
	defer span.End()

	if err := s.requireProvider(); err != nil {
		return nil, err
	}

	evt, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("webhook rejected", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("webhook.type", evt.Type), attribute.String("webhook.id", evt.ID))

	seen, err := s.dedupe.Seen(ctx, evt.ID)
	if err != nil {
		// Process the event anyway.
		s.logger.Warn("webhook dedupe lookup failed", zap.String("event", evt.ID), zap.Error(err))
	}
	if seen {
		s.metrics.IncrWebhookEvent(evt.Type, webhookDuplicate)
		s.logger.Info("webhook replay ignored", zap.String("event", evt.ID), zap.String("type", evt.Type))
		return &domain.WebhookAck{Received: true, Duplicate: true}, nil
	}

	outcome, err := s.applyEvent(ctx, evt)
	if err != nil {
		s.metrics.IncrWebhookEvent(evt.Type, webhookFailed)
		s.logger.Error("webhook handling failed",
			zap.String("event", evt.ID),
			zap.String("type", evt.Type),
			zap.Error(err),
		)
		// %v drops the error kind: any branch failure is a 500.
		return nil, fmt.Errorf("webhook %s: %v", evt.Type, err)
	}

	if err := s.dedupe.Mark(ctx, evt.ID); err != nil {
		s.logger.Warn("webhook dedupe mark failed", zap.String("event", evt.ID), zap.Error(err))
	}
	s.metrics.IncrWebhookEvent(evt.Type, outcome)
	return &domain.WebhookAck{Received: true}, nil
}

func (s *BillingService) applyEvent(ctx context.Context, evt *domain.BillingEvent) (string, error) {
	switch evt.Type {
	case domain.EventCheckoutCompleted:
		return s.onCheckoutCompleted(ctx, evt)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		return s.onSubscriptionChanged(ctx, evt)
	case domain.EventSubscriptionDeleted:
		return s.onSubscriptionDeleted(ctx, evt)
	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		s.logger.Info("invoice event received", zap.String("event", evt.ID), zap.String("type", evt.Type))
		return webhookProcessed, nil
	default:
		s.logger.Debug("unhandled webhook event", zap.String("type", evt.Type))
		return webhookIgnored, nil
	}
}

// onCheckoutCompleted opens the trial for trial sessions and activates paid
// ones. Unpaid non-trial sessions wait for the subscription events.
func (s *BillingService) onCheckoutCompleted(ctx context.Context, evt *domain.BillingEvent) (string, error) {
	sess := evt.Session
	if sess == nil || sess.Metadata.UserID == "" {
		s.logger.Warn("checkout completed without userId metadata", zap.String("event", evt.ID))
		return webhookIgnored, nil
	}
	userID := sess.Metadata.UserID
	if _, err := loadUser(ctx, s.store, userID); err != nil {
		return "", err
	}

	if !sess.Metadata.Trial && sess.PaymentStatus != domain.PaymentStatusPaid {
		s.logger.Info("checkout completed but not paid yet",
			zap.String("user_id", userID),
			zap.String("session", sess.ID),
		)
		return webhookIgnored, nil
	}

	if _, err := s.applySession(ctx, sess); err != nil {
		return "", err
	}
	if !sess.Metadata.Trial {
		if _, err := s.activateCompany(ctx, userID); err != nil {
			return "", err
		}
		s.metrics.IncrOnboardingStep(observability.StepPayment)
	}

	s.logger.Info("checkout applied",
		zap.String("user_id", userID),
		zap.String("session", sess.ID),
		zap.Bool("trial", sess.Metadata.Trial),
	)
	return webhookProcessed, nil
}

// onSubscriptionChanged upserts the provider's status and bounds onto the
// local subscription, matched by provider id first and then by the userId in
// the subscription metadata.
func (s *BillingService) onSubscriptionChanged(ctx context.Context, evt *domain.BillingEvent) (string, error) {
	ps := evt.Subscription
	if ps == nil {
		return webhookIgnored, nil
	}

	sub, err := s.store.FindSubscriptionByProviderID(ctx, ps.ID)
	if err != nil {
		return "", fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		userID := ps.Metadata.UserID
		if userID == "" {
			s.logger.Warn("subscription event without userId metadata",
				zap.String("event", evt.ID),
				zap.String("subscription", ps.ID),
			)
			return webhookIgnored, nil
		}
		if sub, err = s.store.FindSubscriptionByUser(ctx, userID); err != nil {
			return "", fmt.Errorf("get subscription: %w", err)
		}
		if sub == nil || (sub.ProviderSubscription != "" && sub.ProviderSubscription != ps.ID) {
			sub = &domain.Subscription{UserID: userID}
		}
	}

	sub.ProviderSubscription = ps.ID
	if ps.Metadata.PlanID != "" {
		sub.PlanID = ps.Metadata.PlanID
	}
	applyProviderSubscription(sub, ps)

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("save subscription: %w", err)
	}
	if err := s.mirrorUser(ctx, sub.UserID, sub); err != nil {
		return "", err
	}
	return webhookProcessed, nil
}

func (s *BillingService) onSubscriptionDeleted(ctx context.Context, evt *domain.BillingEvent) (string, error) {
	ps := evt.Subscription
	if ps == nil {
		return webhookIgnored, nil
	}

	sub, err := s.store.FindSubscriptionByProviderID(ctx, ps.ID)
	if err != nil {
		return "", fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil && ps.Metadata.UserID != "" {
		if sub, err = s.store.FindSubscriptionByUser(ctx, ps.Metadata.UserID); err != nil {
			return "", fmt.Errorf("get subscription: %w", err)
		}
	}
	if sub == nil {
		s.logger.Warn("deleted subscription is unknown", zap.String("subscription", ps.ID))
		return webhookIgnored, nil
	}

	canceledAt := ps.CanceledAt
	if canceledAt == nil {
		now := s.now().UTC()
		canceledAt = &now
	}
	sub.Status = domain.SubscriptionCanceled
	sub.CanceledAt = canceledAt

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("save subscription: %w", err)
	}
	if err := s.mirrorUser(ctx, sub.UserID, sub); err != nil {
		return "", err
	}
	return webhookProcessed, nil
}
