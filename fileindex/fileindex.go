// fileindex/fileindex.go
package fileindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/feedmill/gdeltflow/models"
)

// Index is the in-memory record of which remote files already exist in local
// storage, per table and tier. It is advisory: rebuilt by scanning disk, never
// trusted across process restarts, and never contains a name without a
// backing file. Concurrent batch workers share one Index under the
// read-refresh/write-register discipline, so all access is lock-guarded.
type Index struct {
	mu      sync.RWMutex
	dataDir string
	names   map[models.Table]map[models.Tier]map[string]struct{}
}

func New(dataDir string) *Index {
	ix := &Index{
		dataDir: dataDir,
		names:   make(map[models.Table]map[models.Tier]map[string]struct{}),
	}
	for _, table := range models.AllTables() {
		ix.names[table] = map[models.Tier]map[string]struct{}{
			models.TierRaw:   {},
			models.TierClean: {},
		}
	}
	return ix
}

// Dir returns the local directory holding one table/tier combination.
func (ix *Index) Dir(table models.Table, tier models.Tier) string {
	return filepath.Join(ix.dataDir, string(table), string(tier))
}

// Refresh rescans local storage for one table and replaces its in-memory name
// sets. Unreadable storage is fatal for that table only.
func (ix *Index) Refresh(table models.Table) error {
	fresh := map[models.Tier]map[string]struct{}{}
	for _, tier := range []models.Tier{models.TierRaw, models.TierClean} {
		dir := ix.Dir(table, tier)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to scan %s storage for table %s: %w", tier, table, err)
		}
		set := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			// Dotfiles are in-progress temp artifacts, not finished files.
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			set[entry.Name()] = struct{}{}
		}
		fresh[tier] = set
	}

	ix.mu.Lock()
	ix.names[table] = fresh
	ix.mu.Unlock()
	return nil
}

// Contains reports whether a name is known for the given table and tier.
func (ix *Index) Contains(table models.Table, tier models.Tier, name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.names[table][tier][name]
	return ok
}

// Register records a name after its file has been written. Registering is how
// a worker releases ownership of a name it claimed before fetching.
func (ix *Index) Register(table models.Table, tier models.Tier, name string) {
	ix.mu.Lock()
	ix.names[table][tier][name] = struct{}{}
	ix.mu.Unlock()
}

// Clear empties the in-memory sets for one table without touching disk.
func (ix *Index) Clear(table models.Table) {
	ix.mu.Lock()
	ix.names[table] = map[models.Tier]map[string]struct{}{
		models.TierRaw:   {},
		models.TierClean: {},
	}
	ix.mu.Unlock()
}

// Names returns a sorted snapshot of the known names for one table and tier,
// safe for the caller to range over while other workers register new files.
// Names sort chronologically for free because every name starts with its
// publication timestamp.
func (ix *Index) Names(table models.Table, tier models.Tier) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.names[table][tier]))
	for name := range ix.names[table][tier] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Count returns how many names are known for one table and tier.
func (ix *Index) Count(table models.Table, tier models.Tier) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.names[table][tier])
}
