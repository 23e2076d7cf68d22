package probe

import (
	"context"

	"github.com/rs/zerolog"

	"ctxprobe/internal/common/humanize"
	"ctxprobe/pkg/types"
)

// Service is the slice of the model serving API the prober consumes.
type Service interface {
	ListModels(ctx context.Context) ([]string, error)
	MaxContext(ctx context.Context, name string) int
	Invoke(ctx context.Context, name string, contextSize int, loadOnly bool) types.InvokeResult
	MemoryFootprint(ctx context.Context, name string) types.MemoryFootprint
	Version(ctx context.Context) string
}

// FitPredicate decides whether a context size is fully VRAM-resident using
// one round trip: a load-only invocation followed by a memory reading.
//
// A failed invocation is classified as "does not fit" no matter why it
// failed. The engine cannot tell an infrastructure hiccup from a genuine
// out-of-memory, so it treats both the same; the cause is logged for
// after-the-fact inspection.
type FitPredicate struct {
	svc     Service
	ceiling int64 // max VRAM bytes allowed, 0 = unbounded
	log     zerolog.Logger
}

// NewFitPredicate builds a predicate. ceiling, when nonzero, caps the VRAM
// a fitting size may occupy.
func NewFitPredicate(svc Service, ceiling int64, log zerolog.Logger) *FitPredicate {
	return &FitPredicate{svc: svc, ceiling: ceiling, log: log.With().Str("component", "fit").Logger()}
}

// Fits reports whether model is fully VRAM-resident at contextSize, along
// with the memory reading that backed the decision.
func (p *FitPredicate) Fits(ctx context.Context, model string, contextSize int) (bool, types.MemoryFootprint) {
	res := p.svc.Invoke(ctx, model, contextSize, true)
	if !res.Success {
		p.log.Info().Str("model", model).Int("context", contextSize).Msg("model call failed, counting as no fit")
		return false, types.MemoryFootprint{}
	}
	mem := p.svc.MemoryFootprint(ctx, model)
	p.log.Info().
		Str("model", model).
		Int("context", contextSize).
		Str("total", humanize.Bytes(mem.TotalBytes)).
		Str("vram", humanize.Bytes(mem.VRAMBytes)).
		Msg("memory usage")
	if !mem.Resident() {
		return false, mem
	}
	if p.ceiling > 0 && mem.VRAMBytes > p.ceiling {
		p.log.Info().
			Str("model", model).
			Int("context", contextSize).
			Str("ceiling", humanize.Bytes(p.ceiling)).
			Msg("fits in VRAM but exceeds configured ceiling")
		return false, mem
	}
	return true, mem
}
