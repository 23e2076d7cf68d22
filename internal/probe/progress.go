package probe

import (
	"sync"
	"time"

	"ctxprobe/pkg/types"
)

// Tracker is an Observer that keeps a read-only projection of sweep
// progress for the status API. The sweep itself is single-threaded; the
// lock exists because HTTP handlers read snapshots concurrently.
type Tracker struct {
	mu         sync.RWMutex
	version    string
	started    time.Time
	current    string
	currentCtx int
	completed  int
	total      int
	models     []types.SweepModelStatus
}

// NewTracker returns a tracker for one sweep.
func NewTracker(serviceVersion string, total int) *Tracker {
	return &Tracker{
		version: serviceVersion,
		started: time.Now(),
		total:   total,
	}
}

func (t *Tracker) ModelStarted(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = model
	t.currentCtx = 0
	t.models = append(t.models, types.SweepModelStatus{Name: model, State: StateProbing})
}

func (t *Tracker) ProbeStarted(model string, contextSize int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentCtx = contextSize
}

func (t *Tracker) ProbeFinished(model string, contextSize int, fits bool, dur time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentCtx = 0
}

func (t *Tracker) ModelFinished(model string, state string, maxContext int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.current = ""
	t.currentCtx = 0
	for i := range t.models {
		if t.models[i].Name == model {
			t.models[i].State = state
			t.models[i].MaxContext = maxContext
			return
		}
	}
	// Skipped models never went through ModelStarted.
	t.models = append(t.models, types.SweepModelStatus{Name: model, State: state, MaxContext: maxContext})
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() types.StatusResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()
	models := make([]types.SweepModelStatus, len(t.models))
	copy(models, t.models)
	return types.StatusResponse{
		ServiceVersion: t.version,
		CurrentModel:   t.current,
		CurrentContext: t.currentCtx,
		Completed:      t.completed,
		Total:          t.total,
		Models:         models,
		UptimeSeconds:  int64(time.Since(t.started).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
}
