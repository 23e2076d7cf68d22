package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ctxprobe/internal/store"
	"ctxprobe/pkg/types"
)

// Model outcome states reported to observers.
const (
	StateSkipped    = "skipped"
	StateProbing    = "probing"
	StateDone       = "done"
	StateInfeasible = "infeasible"
	StateFailed     = "failed"
)

// SweepOptions configure one orchestrated run.
type SweepOptions struct {
	// Model restricts the sweep to a single named model and re-probes it
	// even when it already has a committed row.
	Model string
	// Granularity for the narrowing phase; 0 means exact (1).
	Granularity int
	// CeilingBytes caps VRAM a fitting size may occupy. 0 = none.
	CeilingBytes int64
	// Observer receives progress callbacks. Optional.
	Observer Observer
}

// Orchestrator sweeps candidate models, one at a time, committing the
// result table after each. Probing is strictly sequential: GPU residency
// is the measured quantity, and a second in-flight load would perturb it.
type Orchestrator struct {
	svc    Service
	store  *store.Store
	engine *Engine
	obs    Observer
	log    zerolog.Logger
}

// NewOrchestrator wires an orchestrator over svc and st.
func NewOrchestrator(svc Service, st *store.Store, opts SweepOptions, log zerolog.Logger) *Orchestrator {
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Orchestrator{
		svc:   svc,
		store: st,
		engine: NewEngine(svc, EngineConfig{
			Granularity:  opts.Granularity,
			CeilingBytes: opts.CeilingBytes,
			Observer:     obs,
		}, log),
		obs: obs,
		log: log.With().Str("component", "sweep").Logger(),
	}
}

// Candidates resolves the models a sweep with opts would visit.
func (o *Orchestrator) Candidates(ctx context.Context, opts SweepOptions) ([]string, error) {
	if opts.Model != "" {
		return []string{opts.Model}, nil
	}
	models, err := o.svc.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}
	return models, nil
}

// Sweep resolves candidates and probes them all.
func (o *Orchestrator) Sweep(ctx context.Context, opts SweepOptions) error {
	models, err := o.Candidates(ctx, opts)
	if err != nil {
		return err
	}
	return o.SweepModels(ctx, opts, models)
}

// SweepModels probes the given models and flushes the result table after
// each one. A failure while probing one model is logged and the sweep
// moves on; only a persistence failure aborts, since continuing would
// probe models whose results cannot be committed.
func (o *Orchestrator) SweepModels(ctx context.Context, opts SweepOptions, models []string) error {
	o.log.Info().Int("candidates", len(models)).Msg("sweep starting")

	failed := 0
	for _, name := range models {
		if opts.Model == "" && o.store.Has(name) {
			o.log.Info().Str("model", name).Msg("skipping, already has a committed row")
			o.obs.ModelFinished(name, StateSkipped, 0)
			continue
		}
		if err := o.probeOne(ctx, name); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var persist *persistError
			if errors.As(err, &persist) {
				return persist.err
			}
			o.log.Error().Str("model", name).Err(err).Msg("probe failed, continuing with remaining models")
			o.obs.ModelFinished(name, StateFailed, 0)
			failed++
		}
	}
	o.log.Info().Int("committed", o.store.Len()).Int("failed", failed).Msg("sweep finished")
	return nil
}

// persistError marks a store flush failure so Sweep can tell it apart
// from a per-model probe failure.
type persistError struct{ err error }

func (e *persistError) Error() string { return e.err.Error() }

func (e *persistError) Unwrap() error { return e.err }

// probeOne runs the search for a single model. Panics are contained here:
// one misbehaving model must not take down a multi-hour sweep.
func (o *Orchestrator) probeOne(ctx context.Context, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while probing %s: %v", name, r)
		}
	}()

	o.obs.ModelStarted(name)
	maxCtx := o.svc.MaxContext(ctx, name)
	o.log.Info().Str("model", name).Int("advertised_max", maxCtx).Msg("probing model")

	res := o.engine.Run(ctx, types.ModelIdentity{Name: name, MaxContext: maxCtx})
	if res.MaxContext < Floor {
		o.obs.ModelFinished(name, StateInfeasible, 0)
		return nil
	}

	// The search's last call already unloaded-and-reloaded the model at
	// the answer size, so the resting footprint read here reflects it.
	mem := o.svc.MemoryFootprint(ctx, name)
	row := store.Row{
		ModelName:           name,
		MaxContext:          res.MaxContext,
		IsModelMax:          res.MaxContext == maxCtx,
		MemoryAllocated:     mem.TotalBytes,
		SearchAlgorithm:     AlgorithmID,
		SearchTime:          res.Metrics.TotalTime,
		TotalTries:          res.Metrics.TotalTries,
		PrecisionConfidence: res.Metrics.PrecisionConfidence,
	}
	if res.Performance != nil {
		row.InputTPS = res.Performance.TokensPerSecond
		row.OutputTPS = res.Performance.DecodeTokensPerSecond
		row.TotalDuration = res.Performance.TotalDuration
	}
	o.store.Upsert(row)
	if err := o.store.Save(); err != nil {
		return &persistError{err: err}
	}
	o.log.Info().Str("model", name).Int("max_context", res.MaxContext).Bool("is_model_max", row.IsModelMax).Msg("result committed")
	o.obs.ModelFinished(name, StateDone, res.MaxContext)
	return nil
}
