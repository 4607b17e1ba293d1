package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz and GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// OnboardingMetrics is returned by GET /api/metrics/onboarding.
type OnboardingMetrics struct {
	StepsCompleted   map[string]float64 `json:"stepsCompleted"`
	WebhookEvents    map[string]float64 `json:"webhookEvents"`
	Compensations    float64            `json:"compensations"`
	ExternalErrors   map[string]float64 `json:"externalErrors"`
	CacheHitRate     float64            `json:"cacheHitRate"`
	OnboardingsTotal float64            `json:"onboardingsCompleted"`
}

// SuccessResponse wraps a successful response that carries only a message.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
