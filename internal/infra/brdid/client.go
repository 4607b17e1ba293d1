// Package brdid is the HTTP client for the BRDID phone-number inventory API.
package brdid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("brdid")

const serviceName = "brdid"

// Client implements port.NumberingProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a BRDID client.
func NewClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// ListLocalities returns the areas with numbers in stock.
func (c *Client) ListLocalities(ctx context.Context) ([]domain.Locality, error) {
	ctx, span := tracer.Start(ctx, "BRDID.ListLocalities")
	defer span.End()

	var out envelope[[]domain.Locality]
	if err := c.call(ctx, http.MethodGet, "/localidades", nil, &out, true); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("brdid.localities", len(out.Data)))
	return out.Data, nil
}

// ListNumbers returns up to limit numbers available in area code cn.
func (c *Client) ListNumbers(ctx context.Context, cn string, limit int) ([]domain.AvailableNumber, error) {
	ctx, span := tracer.Start(ctx, "BRDID.ListNumbers")
	defer span.End()
	span.SetAttributes(attribute.String("brdid.cn", cn), attribute.Int("brdid.limit", limit))

	q := url.Values{}
	q.Set("cn", cn)
	q.Set("limit", strconv.Itoa(limit))

	var out envelope[[]domain.AvailableNumber]
	if err := c.call(ctx, http.MethodGet, "/numeros?"+q.Encode(), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// AcquireNumber buys a number. It is not retried: a lost response could
// otherwise buy the number twice.
func (c *Client) AcquireNumber(ctx context.Context, req domain.NumberRequest) (*domain.ProviderOrder, error) {
	ctx, span := tracer.Start(ctx, "BRDID.AcquireNumber")
	defer span.End()
	span.SetAttributes(attribute.String("brdid.number", req.Number))

	body := map[string]any{"numero": req.Number, "cn": req.CN}
	var out envelope[domain.ProviderOrder]
	if err := c.call(ctx, http.MethodPost, "/numeros/adquirir", body, &out, false); err != nil {
		return nil, err
	}
	if out.Data.Number == "" {
		out.Data.Number = req.Number
	}
	c.logger.Info("brdid: number acquired",
		zap.String("number", out.Data.Number),
		zap.String("order_id", out.Data.OrderID),
	)
	return &out.Data, nil
}

// CancelNumber releases a previously acquired number. Cancelling is
// idempotent on the provider side, so it is retried.
func (c *Client) CancelNumber(ctx context.Context, number string) error {
	ctx, span := tracer.Start(ctx, "BRDID.CancelNumber")
	defer span.End()
	span.SetAttributes(attribute.String("brdid.number", number))

	if err := c.call(ctx, http.MethodPost, "/numeros/cancelar", map[string]any{"numero": number}, nil, true); err != nil {
		return err
	}
	c.logger.Info("brdid: number cancelled", zap.String("number", number))
	return nil
}

// call runs one request through the bulkhead and circuit breaker, retrying
// when retry is set. 4xx answers are never retried.
func (c *Client) call(ctx context.Context, method, path string, in, out any, retry bool) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	defer c.bulkhead.Release()

	cfg := c.cfg
	if !retry {
		cfg.MaxRetries = 0
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, func() error {
			return c.do(ctx, method, path, in, out)
		})
	})
	if err == nil {
		return nil
	}

	if c.metrics != nil {
		c.metrics.IncrExternalError(serviceName)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// statusError is a non-2xx answer. The body is kept for logs only.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("brdid returned status %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return resilience.Permanent(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("brdid: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("brdid: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		serr := &statusError{Status: resp.StatusCode, Body: string(raw)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(serr)
		}
		return serr
	}

	c.logger.Debug("brdid: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode brdid response: %w", err))
	}
	return nil
}
