package cleaner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/models"
)

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

// rawRow lays out a record in the table's published column order, taking
// values by column name and leaving the rest empty.
func rawRow(table models.Table, values map[string]string) string {
	cols := table.OriginalColumns()
	fields := make([]string, len(cols))
	for i, col := range cols {
		fields[i] = values[col]
	}
	return strings.Join(fields, "\t")
}

func writeRaw(t *testing.T, index *fileindex.Index, table models.Table, name string, rows ...string) {
	t.Helper()
	path := filepath.Join(index.Dir(table, models.TierRaw), name)
	content := strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing raw fixture: %v", err)
	}
}

func eventValues(id string) map[string]string {
	return map[string]string{
		"GLOBALEVENTID":  id,
		"IsRootEvent":    "1",
		"EventCode":      "042",
		"QuadClass":      "1",
		"AvgTone":        "-2.5",
		"ActionGeo_Lat":  "#38.8951",
		"ActionGeo_Long": "-77.0364",
		"DATEADDED":      "20210401121500",
		"SOURCEURL":      "https://example.org/a",
	}
}

func TestCleanFileEvents(t *testing.T) {
	index := newTestIndex(t)
	c := NewCleaner(index, false)
	rawName := "20210401121500.export.CSV"

	writeRaw(t, index, models.TableEvents, rawName,
		rawRow(models.TableEvents, eventValues("1001")),
		rawRow(models.TableEvents, eventValues("1002")),
	)

	out := c.CleanFile(models.TableEvents, rawName)
	if out.Err != nil {
		t.Fatalf("CleanFile: %v", out.Err)
	}
	if out.Records != 2 {
		t.Errorf("cleaned %d records, want 2", out.Records)
	}

	cleanName := models.TableEvents.CleanName(rawName)
	if !index.Contains(models.TableEvents, models.TierClean, cleanName) {
		t.Error("clean artifact not registered in the file index")
	}

	data, err := os.ReadFile(filepath.Join(index.Dir(models.TableEvents, models.TierClean), cleanName))
	if err != nil {
		t.Fatalf("reading clean artifact: %v", err)
	}
	var recs []models.EventRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("decoding clean artifact: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("artifact holds %d records, want 2", len(recs))
	}

	rec := recs[0]
	if rec.GlobalEventID != 1001 {
		t.Errorf("GlobalEventID = %d, want 1001", rec.GlobalEventID)
	}
	if !rec.IsRootEvent {
		t.Error("IsRootEvent = false, want true")
	}
	if rec.AvgTone != -2.5 {
		t.Errorf("AvgTone = %v, want -2.5", rec.AvgTone)
	}
	if rec.ActionGeoLat == nil || *rec.ActionGeoLat != 38.8951 {
		t.Errorf("ActionGeoLat = %v, want 38.8951 with the '#' stripped", rec.ActionGeoLat)
	}
	if rec.DateAdded.Format("20060102150405") != "20210401121500" {
		t.Errorf("DateAdded = %s, want the record's own timestamp", rec.DateAdded)
	}
	if rec.Actor1Name != nil {
		t.Errorf("empty Actor1Name decoded as %q, want nil", *rec.Actor1Name)
	}

	// Second pass is an idempotent no-op.
	again := c.CleanFile(models.TableEvents, rawName)
	if !again.Skipped {
		t.Error("second CleanFile re-cleaned an already clean file")
	}
}

func TestCleanFileColumnErrors(t *testing.T) {
	index := newTestIndex(t)
	c := NewCleaner(index, false)

	good := rawRow(models.TableEvents, eventValues("1001"))
	tests := []struct {
		name       string
		rawName    string
		row        string
		wantColumn string
	}{
		{
			name:       "missing trailing columns",
			rawName:    "20210401120000.export.CSV",
			row:        strings.Join(strings.Split(good, "\t")[:40], "\t"),
			wantColumn: models.TableEvents.OriginalColumns()[40],
		},
		{
			name:       "extra column",
			rawName:    "20210401121500.export.CSV",
			row:        good + "\tsurplus",
			wantColumn: "unexpected column 62",
		},
		{
			name:    "bad cast",
			rawName: "20210401123000.export.CSV",
			row: rawRow(models.TableEvents, func() map[string]string {
				v := eventValues("1001")
				v["QuadClass"] = "not-a-number"
				return v
			}()),
			wantColumn: "QuadClass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeRaw(t, index, models.TableEvents, tt.rawName, tt.row)

			out := c.CleanFile(models.TableEvents, tt.rawName)
			if out.Err == nil {
				t.Fatal("malformed file cleaned without error")
			}
			var cleanErr *models.CleanError
			if !errors.As(out.Err, &cleanErr) {
				t.Fatalf("got %T, want *models.CleanError", out.Err)
			}
			if cleanErr.Column != tt.wantColumn {
				t.Errorf("error names column %q, want %q", cleanErr.Column, tt.wantColumn)
			}

			cleanPath := filepath.Join(index.Dir(models.TableEvents, models.TierClean),
				models.TableEvents.CleanName(tt.rawName))
			if _, err := os.Stat(cleanPath); !os.IsNotExist(err) {
				t.Error("failed clean left an artifact behind")
			}
		})
	}
}

func TestCleanFileGKGJunkRows(t *testing.T) {
	index := newTestIndex(t)
	c := NewCleaner(index, false)
	rawName := "20210401121500.gkg.csv"

	valid := rawRow(models.TableGKG, map[string]string{
		"GKGRECORDID":        "20210401121500-0",
		"V21DATE":            "20210401121500",
		"V2SourceCommonName": "example.org",
	})
	junk := "stray\ttext\tfragment"

	writeRaw(t, index, models.TableGKG, rawName, valid, junk, valid)

	out := c.CleanFile(models.TableGKG, rawName)
	if out.Err != nil {
		t.Fatalf("CleanFile: %v", out.Err)
	}
	if out.Records != 2 {
		t.Errorf("cleaned %d records, want 2 with the junk row dropped", out.Records)
	}
}

func TestCleanFileMentions(t *testing.T) {
	index := newTestIndex(t)
	c := NewCleaner(index, false)
	rawName := "20210401121500.mentions.CSV"

	writeRaw(t, index, models.TableMentions, rawName,
		rawRow(models.TableMentions, map[string]string{
			"GLOBALEVENTID":     "1001",
			"EventTimeDate":     "20210401120000",
			"MentionTimeDate":   "20210401121500",
			"MentionIdentifier": "https://example.org/a",
			"InRawText":         "0",
			"Confidence":        "100",
			"MentionDocTone":    "3.25",
		}),
	)

	out := c.CleanFile(models.TableMentions, rawName)
	if out.Err != nil {
		t.Fatalf("CleanFile: %v", out.Err)
	}

	data, err := os.ReadFile(filepath.Join(index.Dir(models.TableMentions, models.TierClean),
		models.TableMentions.CleanName(rawName)))
	if err != nil {
		t.Fatalf("reading clean artifact: %v", err)
	}
	var recs []models.MentionRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("decoding clean artifact: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("artifact holds %d records, want 1", len(recs))
	}
	if key := recs[0].DocumentKey(); key != "1001:https://example.org/a" {
		t.Errorf("DocumentKey = %v, want event id + mention identifier", key)
	}
}

func TestCleanTable(t *testing.T) {
	index := newTestIndex(t)
	c := NewCleaner(index, false)
	config.AppConfig.Workers.Clean = 2

	writeRaw(t, index, models.TableEvents, "20210401120000.export.CSV",
		rawRow(models.TableEvents, eventValues("1")))
	writeRaw(t, index, models.TableEvents, "20210401121500.export.CSV",
		rawRow(models.TableEvents, eventValues("2")))
	writeRaw(t, index, models.TableEvents, "20210401123000.export.CSV", "broken\trow")

	outcomes := c.CleanTable(context.Background(), models.TableEvents)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	succeeded, failed := 0, 0
	for _, out := range outcomes {
		switch {
		case out.Success():
			succeeded++
		case out.Err != nil:
			failed++
		}
	}
	if succeeded != 2 || failed != 1 {
		t.Errorf("got %d succeeded / %d failed, want 2 / 1", succeeded, failed)
	}
	if got := index.Count(models.TableEvents, models.TierClean); got != 2 {
		t.Errorf("clean tier holds %d files, want 2", got)
	}
}
