package usage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ctxprobe/pkg/types"
)

// fakeService measures a deterministic footprint per (model, context) and
// can fail individual sizes.
type fakeService struct {
	models    []string
	maxCtx    map[string]int
	failSizes map[int]bool

	loadedCtx   int
	invokeSizes []int
}

func (f *fakeService) ListModels(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.models...), nil
}

func (f *fakeService) MaxContext(ctx context.Context, name string) int {
	return f.maxCtx[name]
}

func (f *fakeService) Invoke(ctx context.Context, name string, contextSize int, loadOnly bool) types.InvokeResult {
	f.invokeSizes = append(f.invokeSizes, contextSize)
	if f.failSizes[contextSize] {
		return types.InvokeResult{}
	}
	f.loadedCtx = contextSize
	return types.InvokeResult{Success: true}
}

func (f *fakeService) MemoryFootprint(ctx context.Context, name string) types.MemoryFootprint {
	total := int64(1<<30) + int64(f.loadedCtx)*2048
	return types.MemoryFootprint{TotalBytes: total, VRAMBytes: total}
}

func (f *fakeService) Version(ctx context.Context) string { return "fake" }

func openReport(t *testing.T, path string) *Report {
	t.Helper()
	rep, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	return rep
}

func TestRunWalksPowersOfTwo(t *testing.T) {
	svc := &fakeService{
		models: []string{"m"},
		maxCtx: map[string]int{"m": 10000},
	}
	path := filepath.Join(t.TempDir(), "context_usage.csv")
	rep := openReport(t, path)

	if err := Run(context.Background(), svc, rep, "", zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 2048, 4096, 8192; 16384 exceeds the advertised max.
	want := []int{2048, 4096, 8192}
	if len(svc.invokeSizes) != len(want) {
		t.Fatalf("invoked sizes = %v, want %v", svc.invokeSizes, want)
	}
	for i, size := range want {
		if svc.invokeSizes[i] != size {
			t.Fatalf("invoked sizes = %v, want %v", svc.invokeSizes, want)
		}
	}
	if rep.Len() != 3 {
		t.Fatalf("rows = %d, want 3", rep.Len())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file: %v", err)
	}
}

func TestRunResumesFromExistingReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context_usage.csv")
	seeded := openReport(t, path)
	seeded.Add(Row{ModelName: "m", ContextSize: 2048, MemoryAllocated: 1})
	seeded.Add(Row{ModelName: "m", ContextSize: 4096, MemoryAllocated: 2})
	if err := seeded.Save(); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	svc := &fakeService{
		models: []string{"m"},
		maxCtx: map[string]int{"m": 10000},
	}
	rep := openReport(t, path)
	if err := Run(context.Background(), svc, rep, "", zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Only the missing size is measured.
	if len(svc.invokeSizes) != 1 || svc.invokeSizes[0] != 8192 {
		t.Fatalf("invoked sizes = %v, want [8192]", svc.invokeSizes)
	}
}

func TestRunFailedSizeDoesNotStopLargerOnes(t *testing.T) {
	svc := &fakeService{
		models:    []string{"m"},
		maxCtx:    map[string]int{"m": 8192},
		failSizes: map[int]bool{4096: true},
	}
	rep := openReport(t, filepath.Join(t.TempDir(), "u.csv"))
	if err := Run(context.Background(), svc, rep, "", zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Len() != 2 {
		t.Fatalf("rows = %d, want 2 (4096 skipped)", rep.Len())
	}
	if rep.Seen("m", 4096) {
		t.Fatalf("failed size must not be recorded")
	}
	if !rep.Seen("m", 8192) {
		t.Fatalf("larger size should still be measured")
	}
}

func TestRunSingleModelOverride(t *testing.T) {
	svc := &fakeService{
		models: []string{"a", "b"},
		maxCtx: map[string]int{"a": 2048, "b": 2048},
	}
	rep := openReport(t, filepath.Join(t.TempDir(), "u.csv"))
	if err := Run(context.Background(), svc, rep, "b", zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Seen("a", 2048) {
		t.Fatalf("override must not measure other models")
	}
	if !rep.Seen("b", 2048) {
		t.Fatalf("override model not measured")
	}
}

func TestSaveWritesSortedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.csv")
	rep := openReport(t, path)
	rep.Add(Row{ModelName: "z", ContextSize: 2048, MemoryAllocated: 3})
	rep.Add(Row{ModelName: "a", ContextSize: 4096, MemoryAllocated: 2})
	rep.Add(Row{ModelName: "a", ContextSize: 2048, MemoryAllocated: 1})
	if err := rep.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d", len(records))
	}
	if records[1][0] != "a" || records[1][1] != "2048" {
		t.Fatalf("first row = %v", records[1])
	}
	if records[3][0] != "z" {
		t.Fatalf("last row = %v", records[3])
	}
}

func TestAddIgnoresDuplicates(t *testing.T) {
	rep := openReport(t, filepath.Join(t.TempDir(), "u.csv"))
	rep.Add(Row{ModelName: "m", ContextSize: 2048, MemoryAllocated: 1})
	rep.Add(Row{ModelName: "m", ContextSize: 2048, MemoryAllocated: 999})
	if rep.Len() != 1 {
		t.Fatalf("rows = %d, want 1", rep.Len())
	}
}
