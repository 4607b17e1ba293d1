package observability

import (
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	onboardingSteps *prometheus.CounterVec
	compensations   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atendimento_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_external_errors_total",
				Help: "Total errors from external providers.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_webhook_events_total",
				Help: "Billing webhook events by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		onboardingSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_onboarding_steps_total",
				Help: "Onboarding steps completed.",
			},
			[]string{"step"},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atendimento_saga_compensations_total",
				Help: "Undo actions run after a failed provisioning step.",
			},
			[]string{"saga", "step", "outcome"},
		),
	}
}

// Onboarding step labels.
const (
	StepBusinessInfo = "business_info"
	StepWhatsApp     = "whatsapp_number"
	StepMeta         = "meta_business"
	StepAutomation   = "automation_setup"
	StepPayment      = "payment"
	StepComplete     = "complete"
)

var onboardingStepLabels = []string{StepBusinessInfo, StepWhatsApp, StepMeta, StepAutomation, StepPayment, StepComplete}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrWebhookEvent counts a webhook event. Outcome is one of processed,
// duplicate, ignored or failed.
func (m *Metrics) IncrWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncrOnboardingStep counts a completed onboarding step.
func (m *Metrics) IncrOnboardingStep(step string) {
	m.onboardingSteps.WithLabelValues(step).Inc()
}

// IncrCompensation counts an undo action. Outcome is ok or failed.
func (m *Metrics) IncrCompensation(saga, step, outcome string) {
	m.compensations.WithLabelValues(saga, step, outcome).Inc()
}

// GetOnboardingSnapshot returns a snapshot suitable for the
// GET /api/metrics/onboarding endpoint.
func (m *Metrics) GetOnboardingSnapshot() *domain.OnboardingMetrics {
	steps := make(map[string]float64, len(onboardingStepLabels))
	for _, s := range onboardingStepLabels {
		steps[s] = getCounterValue(m.onboardingSteps, s)
	}

	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.OnboardingMetrics{
		StepsCompleted:   steps,
		WebhookEvents:    sumByLabel(m.webhookEvents, "outcome"),
		Compensations:    sumCounterVec(m.compensations),
		ExternalErrors:   sumByLabel(m.externalErrors, "service"),
		CacheHitRate:     hitRate,
		OnboardingsTotal: steps[StepComplete],
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// collect reads every child of a CounterVec.
func collect(cv *prometheus.CounterVec) []*dto.Metric {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	var total float64
	for _, m := range collect(cv) {
		total += m.GetCounter().GetValue()
	}
	return total
}

func sumByLabel(cv *prometheus.CounterVec, label string) map[string]float64 {
	out := map[string]float64{}
	for _, m := range collect(cv) {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}
