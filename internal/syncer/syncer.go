// Package syncer reconciles the models installed on the serving host with
// the selected-tag set: selected models are pulled (refreshing ones that
// are already present), installed models outside the selection are
// deleted.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ctxprobe/internal/catalog"
)

// Service is the slice of the serving API the syncer needs.
type Service interface {
	ListModels(ctx context.Context) ([]string, error)
	Pull(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// Plan lists the operations a sync will perform.
type Plan struct {
	// Pull holds every selected model, sorted; pulling an installed model
	// refreshes it.
	Pull []string
	// Delete holds installed models not in the selection, sorted.
	Delete []string
}

// BuildPlan diffs the selection against the installed set.
func BuildPlan(selected map[string]struct{}, installed []string) Plan {
	var plan Plan
	for name := range selected {
		plan.Pull = append(plan.Pull, name)
	}
	sort.Strings(plan.Pull)
	for _, name := range installed {
		if _, ok := selected[name]; !ok {
			plan.Delete = append(plan.Delete, name)
		}
	}
	sort.Strings(plan.Delete)
	return plan
}

// partialError reports a sync that finished but had per-model failures.
type partialError struct{ failed []string }

func (e partialError) Error() string {
	return "sync incomplete, failed: " + strings.Join(e.failed, ", ")
}

// IsPartial reports whether err means the sync ran to the end with some
// per-model failures.
func IsPartial(err error) bool {
	_, ok := err.(partialError)
	return ok
}

// Sync loads the selection, plans, and applies the plan. Per-model
// failures do not stop the run; they surface collectively as a partial
// error so the command can exit non-zero.
func Sync(ctx context.Context, svc Service, selectionPath string, log zerolog.Logger) (Plan, error) {
	log = log.With().Str("component", "syncer").Logger()
	selected, err := catalog.LoadSelection(selectionPath)
	if err != nil {
		return Plan{}, err
	}
	log.Info().Int("selected", len(selected)).Str("file", selectionPath).Msg("selection loaded")

	installed, err := svc.ListModels(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("sync: %w", err)
	}
	log.Info().Int("installed", len(installed)).Msg("installed models fetched")

	plan := BuildPlan(selected, installed)
	var failed []string
	for _, name := range plan.Pull {
		log.Info().Str("model", name).Msg("pulling")
		if err := svc.Pull(ctx, name); err != nil {
			if ctx.Err() != nil {
				return plan, ctx.Err()
			}
			log.Error().Str("model", name).Err(err).Msg("pull failed")
			failed = append(failed, name)
		}
	}
	for _, name := range plan.Delete {
		log.Info().Str("model", name).Msg("deleting")
		if err := svc.Delete(ctx, name); err != nil {
			if ctx.Err() != nil {
				return plan, ctx.Err()
			}
			log.Error().Str("model", name).Err(err).Msg("delete failed")
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return plan, partialError{failed: failed}
	}
	return plan, nil
}

// InitSelection seeds the selection file from the models currently
// installed on the serving host.
func InitSelection(ctx context.Context, svc Service, selectionPath string, log zerolog.Logger) ([]string, error) {
	installed, err := svc.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("init selection: %w", err)
	}
	if err := catalog.SaveSelection(selectionPath, installed); err != nil {
		return nil, err
	}
	log.Info().Int("models", len(installed)).Str("file", selectionPath).Msg("selection initialized from installed models")
	sort.Strings(installed)
	return installed, nil
}
