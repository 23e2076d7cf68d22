// Package usage builds the context usage report: for each model, memory
// consumption measured at power-of-two context sizes up to the advertised
// maximum. Like the probe table, the report file is rewritten in full
// after every model so an interrupted run resumes where it stopped.
package usage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"ctxprobe/internal/common/fsutil"
	"ctxprobe/internal/probe"
)

// Header is the fixed column set of a usage file.
var Header = []string{"model_name", "context_size", "memory_allocated"}

// Row is one measurement: a model's total allocation at one context size.
type Row struct {
	ModelName       string
	ContextSize     int
	MemoryAllocated int64
}

// Report is the in-memory usage table plus its backing file.
type Report struct {
	path string
	rows []Row
	seen map[string]map[int]bool
	log  zerolog.Logger
}

// Open loads (or initializes) the usage table at path.
func Open(path string, log zerolog.Logger) (*Report, error) {
	r := &Report{
		path: path,
		seen: make(map[string]map[int]bool),
		log:  log.With().Str("component", "usage").Logger(),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the backing file path.
func (r *Report) Path() string { return r.path }

// Len returns the number of measurements.
func (r *Report) Len() int { return len(r.rows) }

// Seen reports whether a (model, size) pair is already measured.
func (r *Report) Seen(name string, size int) bool {
	return r.seen[name][size]
}

// Add records one measurement; duplicates are ignored.
func (r *Report) Add(row Row) {
	if r.Seen(row.ModelName, row.ContextSize) {
		return
	}
	r.rows = append(r.rows, row)
	if r.seen[row.ModelName] == nil {
		r.seen[row.ModelName] = make(map[int]bool)
	}
	r.seen[row.ModelName][row.ContextSize] = true
}

// Save rewrites the whole table sorted by model name, then context size.
func (r *Report) Save() error {
	if err := fsutil.EnsureDir(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("usage save: %w", err)
	}
	sort.Slice(r.rows, func(i, j int) bool {
		if r.rows[i].ModelName != r.rows[j].ModelName {
			return r.rows[i].ModelName < r.rows[j].ModelName
		}
		return r.rows[i].ContextSize < r.rows[j].ContextSize
	})
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("usage save: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("usage save: %w", err)
	}
	for _, row := range r.rows {
		rec := []string{row.ModelName, strconv.Itoa(row.ContextSize), strconv.FormatInt(row.MemoryAllocated, 10)}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("usage save: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("usage save: %w", err)
	}
	return nil
}

func (r *Report) load() error {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("usage load: %w", err)
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("usage load %s: %w", r.path, err)
	}
	for i, rec := range records {
		if i == 0 || len(rec) < 3 {
			continue
		}
		size, err := strconv.Atoi(rec[1])
		if err != nil {
			continue
		}
		mem, _ := strconv.ParseInt(rec[2], 10, 64)
		r.Add(Row{ModelName: rec[0], ContextSize: size, MemoryAllocated: mem})
	}
	r.log.Info().Str("path", r.path).Int("rows", len(r.rows)).Msg("usage table loaded")
	return nil
}

// Run measures every candidate model at 2048, 4096, ... up to its
// advertised maximum, committing the table after each model. A failed
// call at one size is logged and skipped; larger sizes are still tried,
// since a transient failure says nothing about a power-of-two walk.
func Run(ctx context.Context, svc probe.Service, rep *Report, onlyModel string, log zerolog.Logger) error {
	log = log.With().Str("component", "usage").Logger()
	var models []string
	if onlyModel != "" {
		models = []string{onlyModel}
	} else {
		var err error
		models, err = svc.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("usage run: %w", err)
		}
	}

	for _, name := range models {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		maxCtx := svc.MaxContext(ctx, name)
		log.Info().Str("model", name).Int("advertised_max", maxCtx).Msg("measuring usage")
		for size := probe.Floor; size <= maxCtx; size *= 2 {
			if rep.Seen(name, size) {
				log.Debug().Str("model", name).Int("context", size).Msg("already measured")
				continue
			}
			res := svc.Invoke(ctx, name, size, false)
			if !res.Success {
				log.Warn().Str("model", name).Int("context", size).Msg("model call failed")
				continue
			}
			mem := svc.MemoryFootprint(ctx, name)
			log.Info().Str("model", name).Int("context", size).Int64("allocated", mem.TotalBytes).Msg("measured")
			rep.Add(Row{ModelName: name, ContextSize: size, MemoryAllocated: mem.TotalBytes})
		}
		if err := rep.Save(); err != nil {
			return err
		}
	}
	return nil
}
