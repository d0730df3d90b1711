package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/models"
)

// fakeUpserter stands in for the store: last write per key wins, every call
// is counted.
type fakeUpserter struct {
	docs  map[models.Table]map[interface{}]interface{}
	calls int
	fail  error
}

func newFakeUpserter() *fakeUpserter {
	return &fakeUpserter{docs: make(map[models.Table]map[interface{}]interface{})}
}

func (f *fakeUpserter) Upsert(ctx context.Context, table models.Table, key interface{}, doc interface{}) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	if f.docs[table] == nil {
		f.docs[table] = make(map[interface{}]interface{})
	}
	f.docs[table][key] = doc
	return nil
}

func newTestIndex(t *testing.T) *fileindex.Index {
	t.Helper()
	index := fileindex.New(t.TempDir())
	for _, table := range models.AllTables() {
		for _, tier := range []models.Tier{models.TierRaw, models.TierClean} {
			if err := os.MkdirAll(index.Dir(table, tier), 0755); err != nil {
				t.Fatalf("creating %s/%s dir: %v", table, tier, err)
			}
		}
	}
	return index
}

func writeCleanEvents(t *testing.T, index *fileindex.Index, name string, ids ...int64) {
	t.Helper()
	recs := make([]models.EventRecord, len(ids))
	for i, id := range ids {
		recs[i] = models.EventRecord{
			GlobalEventID: id,
			QuadClass:     1,
			AvgTone:       -1.5,
			DateAdded:     time.Date(2021, 4, 1, 12, 15, 0, 0, time.UTC),
		}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	path := filepath.Join(index.Dir(models.TableEvents, models.TierClean), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	index.Register(models.TableEvents, models.TierClean, name)
}

func TestLoadFileUpsertsByNaturalKey(t *testing.T) {
	index := newTestIndex(t)
	fake := newFakeUpserter()
	l := NewLoader(index, false)
	l.Upserter = fake

	writeCleanEvents(t, index, "20210401121500.export.json", 1001, 1002, 1003)

	out := l.LoadFile(context.Background(), models.TableEvents, "20210401121500.export.json")
	if out.Err != nil {
		t.Fatalf("LoadFile: %v", out.Err)
	}
	if out.Records != 3 {
		t.Errorf("loaded %d records, want 3", out.Records)
	}
	if len(fake.docs[models.TableEvents]) != 3 {
		t.Errorf("store holds %d documents, want 3", len(fake.docs[models.TableEvents]))
	}
	if _, ok := fake.docs[models.TableEvents][int64(1002)]; !ok {
		t.Error("document keyed by GLOBALEVENTID not found")
	}

	// Same run: the loaded set makes the second pass a no-op.
	again := l.LoadFile(context.Background(), models.TableEvents, "20210401121500.export.json")
	if !again.Skipped {
		t.Error("second LoadFile in one run was not skipped")
	}
	if fake.calls != 3 {
		t.Errorf("store saw %d upserts, want 3", fake.calls)
	}

	// New run: the file loads again but the key space does not grow.
	l2 := NewLoader(index, false)
	l2.Upserter = fake
	rerun := l2.LoadFile(context.Background(), models.TableEvents, "20210401121500.export.json")
	if rerun.Err != nil {
		t.Fatalf("reload: %v", rerun.Err)
	}
	if len(fake.docs[models.TableEvents]) != 3 {
		t.Errorf("reload grew the store to %d documents, want 3", len(fake.docs[models.TableEvents]))
	}
}

func TestLoadFileStoreFailure(t *testing.T) {
	index := newTestIndex(t)
	fake := newFakeUpserter()
	fake.fail = fmt.Errorf("connection reset")
	l := NewLoader(index, false)
	l.Upserter = fake

	writeCleanEvents(t, index, "20210401121500.export.json", 1001)

	out := l.LoadFile(context.Background(), models.TableEvents, "20210401121500.export.json")
	if out.Err == nil {
		t.Fatal("store failure loaded without error")
	}
	var loadErr *models.LoadError
	if !errors.As(out.Err, &loadErr) {
		t.Fatalf("got %T, want *models.LoadError", out.Err)
	}

	// A later retry in the same run is not suppressed by the loaded set.
	fake.fail = nil
	retry := l.LoadFile(context.Background(), models.TableEvents, "20210401121500.export.json")
	if retry.Err != nil || retry.Skipped {
		t.Errorf("retry after failure = %+v, want a real load", retry)
	}
}

func TestLoadTable(t *testing.T) {
	index := newTestIndex(t)
	fake := newFakeUpserter()
	l := NewLoader(index, false)
	l.Upserter = fake

	writeCleanEvents(t, index, "20210401120000.export.json", 1, 2)
	writeCleanEvents(t, index, "20210401121500.export.json", 3)

	outcomes := l.LoadTable(context.Background(), models.TableEvents)
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	total := 0
	for _, out := range outcomes {
		if out.Err != nil {
			t.Errorf("outcome %s failed: %v", out.Name, out.Err)
		}
		total += out.Records
	}
	if total != 3 {
		t.Errorf("loaded %d records, want 3", total)
	}
}
