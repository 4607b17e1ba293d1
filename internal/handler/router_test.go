package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atendimentobr/atendimento-api/internal/handler"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"

	"go.uber.org/zap"
)

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	deps := handler.Deps{Checks: []handler.HealthCheck{
		{Name: "store", Ping: func(context.Context) error { return nil }},
	}}
	router := handler.NewRouter(deps, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_FailingDependency(t *testing.T) {
	deps := handler.Deps{Checks: []handler.HealthCheck{
		{Name: "store", Ping: func(context.Context) error { return nil }},
		{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	}}
	router := handler.NewRouter(deps, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("expected failing dependency in body, got %s", rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrOnboardingStep("business_info")
	router := handler.NewRouter(handler.Deps{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "atendimento_") {
		t.Error("expected application metrics in exposition")
	}
}

func TestOnboardingMetricsSnapshot(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrOnboardingStep("business_info")
	router := handler.NewRouter(handler.Deps{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/onboarding", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"business_info":1`) {
		t.Errorf("unexpected snapshot: %s", rec.Body.String())
	}
}
