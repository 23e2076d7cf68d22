// Package store persists per-model probe outcomes as a version-namespaced
// CSV table. The on-disk file is fully re-derivable from the in-memory
// table: every save rewrites the whole file, sorted by model name, so an
// interrupted sweep always leaves a valid, partially-complete result set.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ctxprobe/internal/common/fsutil"
	"ctxprobe/internal/common/humanize"
)

// Header is the fixed column set of a result file.
var Header = []string{
	"model_name",
	"max_context_size",
	"is_model_max",
	"memory_allocated",
	"input_tokens_per_second",
	"output_tokens_per_second",
	"total_duration",
	"total_duration_human",
	"search_algorithm",
	"search_time",
	"total_tries",
	"precision_confidence",
}

// Row is one persisted probe outcome, keyed by ModelName.
type Row struct {
	ModelName           string
	MaxContext          int
	IsModelMax          bool
	MemoryAllocated     int64
	InputTPS            float64
	OutputTPS           float64
	TotalDuration       time.Duration
	SearchAlgorithm     string
	SearchTime          time.Duration
	TotalTries          int
	PrecisionConfidence float64
}

// FileName returns the result file name for a service version. The version
// string comes from a remote API, so it is sanitized for the filesystem.
func FileName(version string) string {
	return "max_context_" + sanitize(version) + ".csv"
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// Store is the in-memory result table plus its backing file.
type Store struct {
	path string
	rows map[string]Row
	log  zerolog.Logger
}

// Open loads (or initializes) the result table for one service version.
// A missing file is an empty table, not an error.
func Open(dir, version string, log zerolog.Logger) (*Store, error) {
	return OpenPath(filepath.Join(dir, FileName(version)), log)
}

// OpenPath loads the result table at an explicit path, bypassing the
// version-derived file name.
func OpenPath(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		path: path,
		rows: make(map[string]Row),
		log:  log.With().Str("component", "store").Logger(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Has reports whether a model already has a committed row.
func (s *Store) Has(name string) bool {
	_, ok := s.rows[name]
	return ok
}

// Len returns the number of committed rows.
func (s *Store) Len() int { return len(s.rows) }

// Names returns all committed model names, sorted ascending.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.rows))
	for name := range s.rows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upsert creates or replaces the row for row.ModelName.
func (s *Store) Upsert(row Row) {
	s.rows[row.ModelName] = row
}

// Save rewrites the whole table, sorted by model name. The write goes
// through a temp file and rename so a failed save cannot corrupt rows
// committed by an earlier one.
func (s *Store) Save() error {
	if err := fsutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("store save: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".max_context_*.csv")
	if err != nil {
		return fmt.Errorf("store save: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("store save: %w", err)
	}
	for _, name := range s.Names() {
		if err := w.Write(encode(s.rows[name])); err != nil {
			tmp.Close()
			return fmt.Errorf("store save: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("store save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store save: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store save: %w", err)
	}
	s.log.Debug().Str("path", s.path).Int("rows", len(s.rows)).Msg("result table flushed")
	return nil
}

func encode(r Row) []string {
	return []string{
		r.ModelName,
		strconv.Itoa(r.MaxContext),
		strconv.FormatBool(r.IsModelMax),
		strconv.FormatInt(r.MemoryAllocated, 10),
		formatFloat(r.InputTPS),
		formatFloat(r.OutputTPS),
		formatFloat(r.TotalDuration.Seconds()),
		humanize.Duration(r.TotalDuration),
		r.SearchAlgorithm,
		formatFloat(r.SearchTime.Seconds()),
		strconv.Itoa(r.TotalTries),
		formatFloat(r.PrecisionConfidence),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store load: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("store load %s: %w", s.path, err)
	}
	for i, rec := range records {
		if i == 0 || len(rec) == 0 {
			continue // header
		}
		row, err := decode(rec)
		if err != nil {
			s.log.Warn().Str("path", s.path).Int("line", i+1).Err(err).Msg("skipping malformed row")
			continue
		}
		s.rows[row.ModelName] = row
	}
	s.log.Info().Str("path", s.path).Int("rows", len(s.rows)).Msg("result table loaded")
	return nil
}

func decode(rec []string) (Row, error) {
	if len(rec) < 3 || rec[0] == "" {
		return Row{}, errors.New("too few fields")
	}
	maxCtx, err := strconv.Atoi(rec[1])
	if err != nil {
		return Row{}, fmt.Errorf("max_context_size: %w", err)
	}
	isMax, err := strconv.ParseBool(rec[2])
	if err != nil {
		return Row{}, fmt.Errorf("is_model_max: %w", err)
	}
	row := Row{ModelName: rec[0], MaxContext: maxCtx, IsModelMax: isMax}
	// Older files may lack the metric columns; the name/size/is-max triple
	// is all the skip logic needs.
	if len(rec) >= len(Header) {
		row.MemoryAllocated, _ = strconv.ParseInt(rec[3], 10, 64)
		row.InputTPS, _ = strconv.ParseFloat(rec[4], 64)
		row.OutputTPS, _ = strconv.ParseFloat(rec[5], 64)
		if sec, err := strconv.ParseFloat(rec[6], 64); err == nil {
			row.TotalDuration = time.Duration(sec * float64(time.Second))
		}
		row.SearchAlgorithm = rec[8]
		if sec, err := strconv.ParseFloat(rec[9], 64); err == nil {
			row.SearchTime = time.Duration(sec * float64(time.Second))
		}
		row.TotalTries, _ = strconv.Atoi(rec[10])
		row.PrecisionConfidence, _ = strconv.ParseFloat(rec[11], 64)
	}
	return row, nil
}
