package brdid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/infra/brdid"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/infra/resilience"

	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) (*brdid.Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	c := brdid.NewClient(srv.Client(), srv.URL, "secret", resilience.NewCircuitBreaker("brdid-test", zap.NewNop()), cfg, metrics, zap.NewNop())
	return c, metrics
}

func TestListNumbers_SendsQueryAndToken(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/numeros" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("cn") != "11" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing token")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"numero": "1140000001", "cn": "11", "valorMensal": 2990}},
		})
	})

	nums, err := c.ListNumbers(context.Background(), "11", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nums) != 1 || nums[0].Number != "1140000001" || nums[0].MonthlyFee != 2990 {
		t.Errorf("unexpected numbers: %+v", nums)
	}
}

func TestListLocalities_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"cn": "11", "areaLocal": "São Paulo", "uf": "SP"}},
		})
	})

	locs, err := c.ListLocalities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 1 || calls.Load() != 3 {
		t.Errorf("expected 1 locality after 3 calls, got %d after %d", len(locs), calls.Load())
	}
}

func TestListNumbers_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, metrics := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"erro":"cn inválido"}`))
	})

	_, err := c.ListNumbers(context.Background(), "xx", 5)

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if metrics.GetOnboardingSnapshot().ExternalErrors["brdid"] != 1 {
		t.Error("expected external error to be counted")
	}
}

func TestAcquireNumber_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.AcquireNumber(context.Background(), domain.NumberRequest{Number: "1140000001", CN: "11"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single acquire attempt, got %d", calls.Load())
	}
}

func TestAcquireNumber_DecodesOrder(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["numero"] != "1140000001" {
			t.Errorf("unexpected body %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"pedido": "ord_1", "status": "ativo"}})
	})

	order, err := c.AcquireNumber(context.Background(), domain.NumberRequest{Number: "1140000001", CN: "11"})
	if err != nil {
		t.Fatal(err)
	}
	if order.OrderID != "ord_1" || order.Number != "1140000001" {
		t.Errorf("unexpected order %+v", order)
	}
}
