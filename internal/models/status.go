package models

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Message        string `json:"message,omitempty"`
}

// APIStatus is the body of GET /api/status.
type APIStatus struct {
	Status          string            `json:"status"`
	ActiveSessions  int               `json:"active_sessions"`
	CleanedSessions int               `json:"cleaned_sessions"`
	Endpoints       map[string]string `json:"endpoints,omitempty"`
	Capabilities    []string          `json:"capabilities,omitempty"`
}
