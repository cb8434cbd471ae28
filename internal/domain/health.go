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
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// AdvisorMetrics is returned by GET /v1/metrics/advisor.
type AdvisorMetrics struct {
	Committed         int64   `json:"committed"`
	Warned            int64   `json:"warned"`
	Cancelled         int64   `json:"cancelled"`
	Expired           int64   `json:"expired"`
	PersistenceErrors int64   `json:"persistenceErrors"`
	PendingEntries    int64   `json:"pendingEntries"`
	WarningRate       float64 `json:"warningRate"`
	Period            string  `json:"period"`
}
