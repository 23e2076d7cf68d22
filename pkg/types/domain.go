package types

import "time"

// ModelIdentity names a served model together with the context length the
// serving software advertises as its theoretical upper bound.
type ModelIdentity struct {
	// Model name as reported by the service.
	// example: llama3.1:8b-instruct-q4_K_M
	Name string `json:"name" example:"llama3.1:8b-instruct-q4_K_M"`
	// Advertised maximum context length in tokens.
	// example: 131072
	MaxContext int `json:"max_context" example:"131072"`
}

// MemoryFootprint is a point-in-time memory reading for a resident model.
type MemoryFootprint struct {
	// Total working set in bytes (VRAM plus host spill).
	// example: 6442450944
	TotalBytes int64 `json:"total_bytes" example:"6442450944"`
	// Bytes of the working set resident in GPU memory.
	// example: 6442450944
	VRAMBytes int64 `json:"vram_bytes" example:"6442450944"`
}

// Resident reports whether the whole working set sits in GPU memory.
func (m MemoryFootprint) Resident() bool {
	return m.VRAMBytes >= m.TotalBytes
}

// InvokeResult is the outcome of one inference call. Remote failure is
// reported through Success, never through an error: the caller cannot tell
// a network fault from a genuine capacity failure and must not try.
type InvokeResult struct {
	Success bool `json:"success"`
	// Combined prompt+generation throughput in tokens per second.
	// example: 812.4
	TokensPerSecond float64 `json:"tokens_per_second,omitempty" example:"812.4"`
	// Generation-only (decode) throughput in tokens per second.
	// example: 54.1
	DecodeTokensPerSecond float64 `json:"decode_tokens_per_second,omitempty" example:"54.1"`
	// Wall time of the call.
	TotalDuration time.Duration `json:"total_duration,omitempty" swaggertype:"primitive,integer"`
}

// ProbeAttempt records one round trip of the fit predicate. Attempts are
// appended in probe order and never mutated.
type ProbeAttempt struct {
	// Context size tried.
	// example: 16384
	ContextSize int `json:"context_size" example:"16384"`
	// Whether the model was fully VRAM-resident at that size.
	// example: true
	Fits bool `json:"fits" example:"true"`
	// Total working set observed, in bytes.
	MemoryTotal int64 `json:"memory_total"`
	// VRAM-resident bytes observed.
	MemoryVRAM int64 `json:"memory_vram"`
}

// SearchMetrics summarizes one search engine run.
type SearchMetrics struct {
	// Number of fit-predicate round trips.
	// example: 7
	TotalTries int `json:"total_tries" example:"7"`
	// Wall time of the whole search.
	TotalTime time.Duration `json:"total_time" swaggertype:"primitive,integer"`
	// How exact the answer is, in percent. 100 means no residual interval
	// (or a direct fit at the advertised maximum).
	// example: 99.98
	PrecisionConfidence float64 `json:"precision_confidence" example:"99.98"`
}

// ProbeResult is the full outcome of probing one model.
type ProbeResult struct {
	// Largest context size confirmed fully VRAM-resident. Zero when the
	// model does not fit even at the probe floor.
	// example: 24576
	MaxContext int `json:"max_context" example:"24576"`
	// Throughput sample taken at MaxContext with a full generation call.
	// Nil when the model was infeasible.
	Performance *InvokeResult  `json:"performance,omitempty"`
	Metrics     SearchMetrics  `json:"metrics"`
	Attempts    []ProbeAttempt `json:"attempts,omitempty"`
}

// CatalogModel is one entry of the model catalog: a model family name and
// the tags published for it. The catalog is produced outside this tool;
// only its shape is contracted here.
type CatalogModel struct {
	// example: llama3.1
	Name string `json:"model_name" example:"llama3.1"`
	// example: ["8b","8b-instruct-q4_K_M"]
	Tags []string `json:"tags"`
}
