package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ctxprobe/pkg/types"
)

const (
	// Floor is the smallest context size ever probed. Sizes below it are
	// not worth serving and are never tried.
	Floor = 2048

	// AlgorithmID names the search strategy in persisted rows.
	AlgorithmID = "max_first_bisect"
)

// searchState tracks where a run is in its lifecycle, for logging.
type searchState string

const (
	stateProbeMax   searchState = "probe_max"
	stateDoneAtMax  searchState = "done_at_max"
	stateProbeMin   searchState = "probe_min"
	stateInfeasible searchState = "infeasible"
	stateNarrow     searchState = "narrow"
	stateDone       searchState = "done"
)

// Observer receives progress callbacks from a running search or sweep.
// Implementations must be safe for calls from the single sweep goroutine.
type Observer interface {
	ModelStarted(model string)
	ProbeStarted(model string, contextSize int)
	ProbeFinished(model string, contextSize int, fits bool, dur time.Duration)
	ModelFinished(model string, state string, maxContext int)
}

// nopObserver keeps the hot path free of nil checks.
type nopObserver struct{}

func (nopObserver) ModelStarted(string)                            {}
func (nopObserver) ProbeStarted(string, int)                       {}
func (nopObserver) ProbeFinished(string, int, bool, time.Duration) {}
func (nopObserver) ModelFinished(string, string, int)              {}

// MultiObserver fans callbacks out to several observers.
func MultiObserver(obs ...Observer) Observer { return multiObserver(obs) }

type multiObserver []Observer

func (m multiObserver) ModelStarted(model string) {
	for _, o := range m {
		o.ModelStarted(model)
	}
}

func (m multiObserver) ProbeStarted(model string, contextSize int) {
	for _, o := range m {
		o.ProbeStarted(model, contextSize)
	}
}

func (m multiObserver) ProbeFinished(model string, contextSize int, fits bool, dur time.Duration) {
	for _, o := range m {
		o.ProbeFinished(model, contextSize, fits, dur)
	}
}

func (m multiObserver) ModelFinished(model string, state string, maxContext int) {
	for _, o := range m {
		o.ModelFinished(model, state, maxContext)
	}
}

// Engine runs the max-first bisection search for one model at a time.
//
// Every fit-predicate call costs a remote model load, seconds to minutes
// each, so the strategy is built around round-trip count: the advertised
// maximum is tried first because whole-window fits are the common case,
// the floor second because it proves feasibility, and only then is the
// already-bounded interval bisected.
type Engine struct {
	svc         Service
	pred        *FitPredicate
	granularity int
	obs         Observer
	log         zerolog.Logger
}

// EngineConfig carries the tunables for a search engine.
type EngineConfig struct {
	// Granularity is the largest unresolved interval the narrowing phase
	// may leave. 1 converges to the exact boundary; larger values trade
	// exactness for fewer round trips.
	Granularity int
	// CeilingBytes caps the VRAM a fitting size may occupy. 0 = none.
	CeilingBytes int64
	// Observer receives progress callbacks. Optional.
	Observer Observer
}

// NewEngine builds an engine over svc.
func NewEngine(svc Service, cfg EngineConfig, log zerolog.Logger) *Engine {
	g := cfg.Granularity
	if g < 1 {
		g = 1
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Engine{
		svc:         svc,
		pred:        NewFitPredicate(svc, cfg.CeilingBytes, log),
		granularity: g,
		obs:         obs,
		log:         log.With().Str("component", "search").Logger(),
	}
}

// Run finds the largest fitting context size for model. It always returns
// a result; individual probe failures are absorbed by the fit predicate,
// and total infeasibility is reported as MaxContext 0.
func (e *Engine) Run(ctx context.Context, model types.ModelIdentity) types.ProbeResult {
	start := time.Now()
	maxCtx := model.MaxContext
	if maxCtx < Floor {
		maxCtx = Floor
	}

	var attempts []types.ProbeAttempt
	try := func(size int) bool {
		e.obs.ProbeStarted(model.Name, size)
		probeStart := time.Now()
		fits, mem := e.pred.Fits(ctx, model.Name, size)
		e.obs.ProbeFinished(model.Name, size, fits, time.Since(probeStart))
		attempts = append(attempts, types.ProbeAttempt{
			ContextSize: size,
			Fits:        fits,
			MemoryTotal: mem.TotalBytes,
			MemoryVRAM:  mem.VRAMBytes,
		})
		return fits
	}

	e.transition(model.Name, stateProbeMax, maxCtx)
	if try(maxCtx) {
		e.transition(model.Name, stateDoneAtMax, maxCtx)
		return e.finish(ctx, model, maxCtx, 100, attempts, start)
	}

	// The advertised maximum may equal the floor, in which case the first
	// probe already answered feasibility and a second one is redundant.
	if maxCtx > Floor {
		e.transition(model.Name, stateProbeMin, Floor)
		if try(Floor) {
			e.transition(model.Name, stateNarrow, 0)
			low, high := Floor, maxCtx
			for high-low > e.granularity {
				mid := low + (high-low)/2
				if try(mid) {
					low = mid
				} else {
					high = mid
				}
			}
			e.transition(model.Name, stateDone, low)
			return e.finish(ctx, model, low, confidence(low, high), attempts, start)
		}
	}

	e.transition(model.Name, stateInfeasible, 0)
	e.log.Info().Str("model", model.Name).Int("floor", Floor).Msg("model cannot fit in VRAM even at the floor")
	return types.ProbeResult{
		MaxContext: 0,
		Metrics: types.SearchMetrics{
			TotalTries:          len(attempts),
			TotalTime:           time.Since(start),
			PrecisionConfidence: 100,
		},
		Attempts: attempts,
	}
}

// finish captures a throughput sample at the answer and assembles the
// result. The sample uses a full generation call: the boundary probes skip
// generation on purpose, so they carry no representative throughput.
func (e *Engine) finish(ctx context.Context, model types.ModelIdentity, answer int, conf float64, attempts []types.ProbeAttempt, start time.Time) types.ProbeResult {
	var perf *types.InvokeResult
	if sample := e.svc.Invoke(ctx, model.Name, answer, false); sample.Success {
		perf = &sample
	} else {
		e.log.Warn().Str("model", model.Name).Int("context", answer).Msg("throughput sample failed")
	}
	res := types.ProbeResult{
		MaxContext:  answer,
		Performance: perf,
		Metrics: types.SearchMetrics{
			TotalTries:          len(attempts),
			TotalTime:           time.Since(start),
			PrecisionConfidence: conf,
		},
		Attempts: attempts,
	}
	e.log.Info().
		Str("model", model.Name).
		Int("max_context", answer).
		Int("tries", res.Metrics.TotalTries).
		Dur("search_time", res.Metrics.TotalTime).
		Msg("search finished")
	return res
}

// confidence expresses how much of the answer's magnitude the residual
// interval leaves unresolved. A gap of one token means the boundary itself
// was found: fits(low) held and fits(low+1) did not.
func confidence(low, high int) float64 {
	gap := high - low
	if gap <= 1 || low <= 0 {
		return 100
	}
	return 100 - float64(gap)/float64(low)*100
}

func (e *Engine) transition(model string, s searchState, at int) {
	ev := e.log.Debug().Str("model", model).Str("state", string(s))
	if at > 0 {
		ev = ev.Int("context", at)
	}
	ev.Msg("search state")
}
