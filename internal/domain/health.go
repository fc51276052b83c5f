package domain

// ServiceHealth reports the health of one dependency.
type ServiceHealth struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"` // healthy, degraded, unhealthy
	LatencyMs     int64   `json:"latency_ms"`
	UptimePercent float64 `json:"uptime_percent"`
	LastChecked   string  `json:"last_checked"`
}

// HealthStatus is the /healthz response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// SuccessResponse is a generic success envelope.
type SuccessResponse struct {
	Message string `json:"message"`
}
