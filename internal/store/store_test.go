package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileName(t *testing.T) {
	cases := []struct {
		version string
		want    string
	}{
		{"0.11.4", "max_context_0.11.4.csv"},
		{"0.1.0-rc1", "max_context_0.1.0-rc1.csv"},
		{"", "max_context_unknown.csv"},
		{"v1/with:odd chars", "max_context_v1_with_odd_chars.csv"},
	}
	for _, tc := range cases {
		if got := FileName(tc.version); got != tc.want {
			t.Fatalf("FileName(%q) = %q, want %q", tc.version, got, tc.want)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, "0.11.4", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	st.Upsert(Row{
		ModelName:           "llama3.1:8b",
		MaxContext:          24576,
		IsModelMax:          false,
		MemoryAllocated:     9 << 30,
		InputTPS:            842.5,
		OutputTPS:           61.25,
		TotalDuration:       3200 * time.Millisecond,
		SearchAlgorithm:     "max_first_bisect",
		SearchTime:          145 * time.Second,
		TotalTries:          14,
		PrecisionConfidence: 100,
	})
	st.Upsert(Row{ModelName: "all-minilm:latest", MaxContext: 512, IsModelMax: true})
	if err := st.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, err := Open(dir, "0.11.4", zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reread.Len() != 2 {
		t.Fatalf("rows = %d, want 2", reread.Len())
	}
	row, ok := reread.rows["llama3.1:8b"]
	if !ok {
		t.Fatalf("row missing after reload")
	}
	if row.MaxContext != 24576 || row.MemoryAllocated != 9<<30 || row.TotalTries != 14 {
		t.Fatalf("reloaded row = %+v", row)
	}
	if row.InputTPS != 842.5 || row.OutputTPS != 61.25 {
		t.Fatalf("reloaded throughput = %v/%v", row.InputTPS, row.OutputTPS)
	}
	if row.SearchAlgorithm != "max_first_bisect" {
		t.Fatalf("algorithm = %q", row.SearchAlgorithm)
	}
	if row.TotalDuration != 3200*time.Millisecond {
		t.Fatalf("duration = %v", row.TotalDuration)
	}
}

func TestSaveWritesSortedRows(t *testing.T) {
	st, err := Open(t.TempDir(), "v", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, name := range []string{"zeta", "alpha", "mid"} {
		st.Upsert(Row{ModelName: name, MaxContext: 2048})
	}
	if err := st.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(st.Path())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want header + 3", len(records))
	}
	if records[0][0] != "model_name" {
		t.Fatalf("header = %v", records[0])
	}
	got := []string{records[1][0], records[2][0], records[3][0]}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row order = %v, want %v", got, want)
		}
	}
}

func TestUpsertReplacesRow(t *testing.T) {
	st, err := Open(t.TempDir(), "v", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st.Upsert(Row{ModelName: "m", MaxContext: 2048})
	st.Upsert(Row{ModelName: "m", MaxContext: 8192})
	if st.Len() != 1 {
		t.Fatalf("len = %d, want 1", st.Len())
	}
	if st.rows["m"].MaxContext != 8192 {
		t.Fatalf("max = %d, want 8192", st.rows["m"].MaxContext)
	}
}

func TestLoadToleratesLegacyAndMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.csv")
	content := strings.Join([]string{
		"model_name,max_context_size,is_model_max",
		"short:legacy,16384,true", // metric columns absent
		",1024,true",              // no model name
		"bad:number,not-an-int,true",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	st, err := OpenPath(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("rows = %d, want only the valid legacy row", st.Len())
	}
	row := st.rows["short:legacy"]
	if row.MaxContext != 16384 || !row.IsModelMax {
		t.Fatalf("legacy row = %+v", row)
	}
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	st, err := Open(t.TempDir(), "never-written", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if st.Len() != 0 || st.Has("anything") {
		t.Fatalf("expected an empty table")
	}
}

func TestSaveCreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.csv")
	st, err := OpenPath(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st.Upsert(Row{ModelName: "m", MaxContext: 2048})
	if err := st.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}
