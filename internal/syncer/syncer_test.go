package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

type fakeService struct {
	installed []string
	pullErr   map[string]error
	deleteErr map[string]error

	pulled  []string
	deleted []string
}

func (f *fakeService) ListModels(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.installed...), nil
}

func (f *fakeService) Pull(ctx context.Context, name string) error {
	f.pulled = append(f.pulled, name)
	return f.pullErr[name]
}

func (f *fakeService) Delete(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr[name]
}

func selection(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func TestBuildPlan(t *testing.T) {
	plan := BuildPlan(selection("keep:1", "new:2"), []string{"keep:1", "stale:3"})

	if len(plan.Pull) != 2 || plan.Pull[0] != "keep:1" || plan.Pull[1] != "new:2" {
		t.Fatalf("pull = %v", plan.Pull)
	}
	if len(plan.Delete) != 1 || plan.Delete[0] != "stale:3" {
		t.Fatalf("delete = %v", plan.Delete)
	}
}

func TestBuildPlanEmptySelectionDeletesEverything(t *testing.T) {
	plan := BuildPlan(selection(), []string{"b:1", "a:1"})
	if len(plan.Pull) != 0 {
		t.Fatalf("pull = %v, want none", plan.Pull)
	}
	if len(plan.Delete) != 2 || plan.Delete[0] != "a:1" {
		t.Fatalf("delete = %v, want sorted [a:1 b:1]", plan.Delete)
	}
}

func writeSelection(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "selected_tags.conf")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write selection: %v", err)
	}
	return path
}

func TestSyncAppliesPlan(t *testing.T) {
	svc := &fakeService{installed: []string{"keep:1", "stale:2"}}
	path := writeSelection(t, "keep:1\nnew:3\n")

	plan, err := Sync(context.Background(), svc, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(plan.Pull) != 2 || len(plan.Delete) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
	if len(svc.pulled) != 2 || svc.pulled[0] != "keep:1" || svc.pulled[1] != "new:3" {
		t.Fatalf("pulled = %v", svc.pulled)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "stale:2" {
		t.Fatalf("deleted = %v", svc.deleted)
	}
}

func TestSyncCollectsPartialFailures(t *testing.T) {
	svc := &fakeService{
		installed: []string{"stale:2"},
		pullErr:   map[string]error{"bad:1": errors.New("manifest not found")},
	}
	path := writeSelection(t, "bad:1\ngood:1\n")

	_, err := Sync(context.Background(), svc, path, zerolog.Nop())
	if err == nil {
		t.Fatalf("expected partial error")
	}
	if !IsPartial(err) {
		t.Fatalf("IsPartial = false for %v", err)
	}
	// The failure did not stop the rest of the plan.
	if len(svc.pulled) != 2 {
		t.Fatalf("pulled = %v, want both attempts", svc.pulled)
	}
	if len(svc.deleted) != 1 {
		t.Fatalf("deleted = %v, want the stale model gone", svc.deleted)
	}
}

func TestSyncCanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{
		installed: []string{},
		pullErr:   map[string]error{"a:1": context.Canceled},
	}
	cancel()
	path := writeSelection(t, "a:1\nb:1\n")

	_, err := Sync(ctx, svc, path, zerolog.Nop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if IsPartial(err) {
		t.Fatalf("cancellation must not read as a partial sync")
	}
}

func TestInitSelectionWritesInstalledModels(t *testing.T) {
	svc := &fakeService{installed: []string{"z:1", "a:2"}}
	path := filepath.Join(t.TempDir(), "selected_tags.conf")

	models, err := InitSelection(context.Background(), svc, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(models) != 2 || models[0] != "a:2" || models[1] != "z:1" {
		t.Fatalf("models = %v, want sorted", models)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "a:2\nz:1\n" {
		t.Fatalf("file = %q", b)
	}
}
