package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
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
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	Assessments     int64               `json:"assessments"`
	ByLevel         map[RiskLevel]int64 `json:"byLevel"`
	ElevatedRate    float64             `json:"elevatedRate"`
	ExternalErrors  int64               `json:"externalErrors"`
	CacheHitRate    float64             `json:"cacheHitRate"`
	ProfileRuns     int64               `json:"profileRuns"`
	LastProfileSize int64               `json:"lastProfileSize"`
	Period          string              `json:"period"`
}
