package models

// ScrapeResponse is the response for POST /api/scrape.
type ScrapeResponse struct {
	Success bool `json:"success"`

	// Data is the (optionally projected) ScrapeResult.
	Data any `json:"data,omitempty"`

	// Error and Code are populated only when Success is false.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// ValidationErrorResponse is returned with 400 when a body fails validation.
type ValidationErrorResponse struct {
	Success bool         `json:"success"`
	Errors  []FieldError `json:"errors"`
}

// AsyncResponse is the immediate response for POST /api/scrape/async.
type AsyncResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// BatchResponse is the immediate response for POST /api/scrape/batch.
type BatchResponse struct {
	Success bool     `json:"success"`
	BatchID string   `json:"batchId"`
	JobIDs  []string `json:"jobIds"`
	Message string   `json:"message"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status         string  `json:"status"`
	Uptime         float64 `json:"uptime"`
	Version        string  `json:"version"`
	ActiveSessions int     `json:"activeSessions"`
}
