package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("payments")

const serviceName = "stripe"

// StripeProvider implements port.BillingProvider against the Stripe API.
// The stripe client retries network errors itself.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewStripeProvider creates a live provider.
func NewStripeProvider(secretKey, webhookSecret string, metrics *observability.Metrics, logger *zap.Logger) *StripeProvider {
	return &StripeProvider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		metrics:       metrics,
		logger:        logger,
	}
}

// fail logs the provider error in full and returns a wrapped error whose
// message the HTTP layer does not echo.
func (p *StripeProvider) fail(op string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		fields = append(fields,
			zap.String("stripe_code", string(serr.Code)),
			zap.String("stripe_type", string(serr.Type)),
			zap.String("request_id", serr.RequestID),
		)
	}
	p.logger.Error("stripe: call failed", fields...)
	if p.metrics != nil {
		p.metrics.IncrExternalError(serviceName)
	}
	return &domain.ErrExternalService{Service: serviceName, Err: fmt.Errorf("%s: %w", op, err)}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateCustomer")
	defer span.End()

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", p.fail("create customer", err)
	}
	span.SetAttributes(attribute.String("stripe.customer", c.ID))
	return c.ID, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, customerID string, plan domain.Plan, md domain.CheckoutMetadata) (*domain.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreatePaymentIntent")
	defer span.End()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(plan.Amount),
		Currency: stripe.String(plan.Currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadataMap(md) {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, p.fail("create payment intent", err)
	}
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		CustomerID:   customerID,
	}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in domain.CheckoutParams) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateCheckoutSession")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", in.Plan.ID), attribute.Bool("trial", in.Metadata.Trial))

	md := metadataMap(in.Metadata)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Plan.Currency),
				UnitAmount: stripe.Int64(in.Plan.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("Atendimento BR " + in.Plan.Name),
					Description: stripe.String(in.Plan.Description),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(in.Plan.Interval),
				},
			},
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: md,
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(in.Email)
	}
	if in.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(in.TrialDays)
	}
	params.Context = ctx
	for k, v := range md {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, p.fail("create checkout session", err)
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "Stripe.GetCheckoutSession")
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, &domain.ErrNotFound{Resource: "checkout session", ID: sessionID}
		}
		return nil, p.fail("get checkout session", err)
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error) {
	ctx, span := tracer.Start(ctx, "Stripe.GetSubscription")
	defer span.End()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, p.fail("get subscription", err)
	}
	return toSubscription(s), nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*domain.ProviderSubscription, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CancelSubscription")
	defer span.End()
	span.SetAttributes(attribute.Bool("at_period_end", atPeriodEnd))

	var (
		s   *stripe.Subscription
		err error
	)
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		s, err = p.api.Subscriptions.Update(subscriptionID, params)
	} else {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		s, err = p.api.Subscriptions.Cancel(subscriptionID, params)
	}
	if err != nil {
		return nil, p.fail("cancel subscription", err)
	}
	return toSubscription(s), nil
}

func (p *StripeProvider) CreateMonthlyPrice(ctx context.Context, req domain.PriceRequest) (*domain.ProviderPrice, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateMonthlyPrice")
	defer span.End()

	prodParams := &stripe.ProductParams{Name: stripe.String(req.Name)}
	prodParams.Context = ctx
	for k, v := range req.Metadata {
		prodParams.AddMetadata(k, v)
	}
	prod, err := p.api.Products.New(prodParams)
	if err != nil {
		return nil, p.fail("create product", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(req.Amount),
		Currency:   stripe.String(req.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	}
	priceParams.Context = ctx
	price, err := p.api.Prices.New(priceParams)
	if err != nil {
		// The product alone is harmless but clutters the dashboard.
		if aerr := p.ArchiveProduct(context.WithoutCancel(ctx), prod.ID); aerr != nil {
			p.logger.Warn("stripe: could not archive orphan product", zap.String("product", prod.ID), zap.Error(aerr))
		}
		return nil, p.fail("create price", err)
	}
	return &domain.ProviderPrice{ProductID: prod.ID, PriceID: price.ID}, nil
}

// ArchiveProduct deactivates a product. Products with prices cannot be
// deleted.
func (p *StripeProvider) ArchiveProduct(ctx context.Context, productID string) error {
	ctx, span := tracer.Start(ctx, "Stripe.ArchiveProduct")
	defer span.End()

	params := &stripe.ProductParams{Active: stripe.Bool(false)}
	params.Context = ctx
	if _, err := p.api.Products.Update(productID, params); err != nil {
		return p.fail("archive product", err)
	}
	return nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*domain.BillingEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.logger.Warn("stripe: webhook signature rejected", zap.Error(err))
		return nil, &domain.ErrValidation{Message: "Assinatura do webhook inválida"}
	}
	return decodeEvent(evt)
}
