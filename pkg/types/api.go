package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: encoding failed
	Error string `json:"error" example:"encoding failed"`
	// HTTP status code.
	// example: 500
	Code int `json:"code" example:"500"`
}

// SweepModelStatus summarizes one model within a running sweep.
type SweepModelStatus struct {
	// Model name.
	// example: qwen3:8b-fp16
	Name string `json:"name" example:"qwen3:8b-fp16"`
	// Outcome state: skipped, probing, done, infeasible or failed.
	// example: done
	State string `json:"state" example:"done"`
	// Final answer for finished models.
	// example: 24576
	MaxContext int `json:"max_context,omitempty" example:"24576"`
}

// StatusResponse is returned by GET /status while a sweep is running.
type StatusResponse struct {
	// Service version string namespacing the result file.
	// example: 0.6.8
	ServiceVersion string `json:"service_version" example:"0.6.8"`
	// Model currently being probed, empty between models.
	// example: qwen3:8b-fp16
	CurrentModel string `json:"current_model,omitempty" example:"qwen3:8b-fp16"`
	// Context size of the probe call in flight, 0 when idle.
	// example: 16384
	CurrentContext int `json:"current_context,omitempty" example:"16384"`
	// Number of models finished so far (including skips).
	// example: 5
	Completed int `json:"completed" example:"5"`
	// Total models in this sweep.
	// example: 12
	Total int `json:"total" example:"12"`
	// Per-model outcomes so far, in sweep order.
	Models []SweepModelStatus `json:"models,omitempty"`
	// Uptime of the sweep in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
