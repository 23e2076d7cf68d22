// Package catalog reads and writes the model catalog and the selected-tag
// set. The catalog itself is produced by an external harvester; this
// package only contracts its shape and the file handling around it.
package catalog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ctxprobe/internal/common/fsutil"
	"ctxprobe/pkg/types"
)

// Resolve picks the catalog (or selection) file to use: an explicitly
// specified path wins when it exists, then a file of the default name in
// the working directory, then the default name itself (for creation).
func Resolve(specified, defaultName string) string {
	if specified != "" {
		if fsutil.PathExists(specified) {
			return specified
		}
	}
	local := filepath.Join(".", defaultName)
	if fsutil.PathExists(local) {
		return local
	}
	if specified != "" {
		return specified
	}
	return local
}

// LoadCatalog parses a catalog JSON file.
func LoadCatalog(path string) ([]types.CatalogModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog load: %w", err)
	}
	var models []types.CatalogModel
	if err := json.Unmarshal(b, &models); err != nil {
		return nil, fmt.Errorf("catalog load %s: %w", path, err)
	}
	return models, nil
}

// SaveCatalog writes the catalog JSON, indented for hand inspection.
func SaveCatalog(path string, models []types.CatalogModel) error {
	b, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}
	return nil
}

// LoadSelection reads the selected model:tag lines. A missing file is an
// empty selection, not an error.
func LoadSelection(path string) (map[string]struct{}, error) {
	selected := make(map[string]struct{})
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return selected, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selection load: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			selected[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("selection load: %w", err)
	}
	return selected, nil
}

// SaveSelection writes the selected tags, one per line, sorted.
func SaveSelection(path string, tags []string) error {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, t := range sorted {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("selection save: %w", err)
	}
	return nil
}
