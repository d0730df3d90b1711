package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/models"
)

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("20060102150405", v, time.UTC)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", v, err)
	}
	return ts
}

func TestFileName(t *testing.T) {
	ts := mustTime(t, "20210401121500")
	tests := []struct {
		table models.Table
		want  string
	}{
		{models.TableEvents, "20210401121500.export.CSV"},
		{models.TableMentions, "20210401121500.mentions.CSV"},
		{models.TableGKG, "20210401121500.gkg.csv"},
	}
	for _, tt := range tests {
		if got := FileName(tt.table, ts); got != tt.want {
			t.Errorf("FileName(%s) = %q, want %q", tt.table, got, tt.want)
		}
		if got := ZipName(tt.table, ts); got != tt.want+".zip" {
			t.Errorf("ZipName(%s) = %q, want %q", tt.table, got, tt.want+".zip")
		}
	}
}

func TestTableForFileRoundTrip(t *testing.T) {
	ts := mustTime(t, "20230115063000")
	for _, table := range models.AllTables() {
		name := FileName(table, ts)

		gotTable, err := TableForFile(name)
		if err != nil {
			t.Fatalf("TableForFile(%q): %v", name, err)
		}
		if gotTable != table {
			t.Errorf("TableForFile(%q) = %s, want %s", name, gotTable, table)
		}

		gotTS, err := TimestampForFile(name)
		if err != nil {
			t.Fatalf("TimestampForFile(%q): %v", name, err)
		}
		if !gotTS.Equal(ts) {
			t.Errorf("TimestampForFile(%q) = %s, want %s", name, gotTS, ts)
		}
	}

	if _, err := TableForFile("20230115063000.unknown.CSV"); err == nil {
		t.Error("TableForFile accepted an unknown extension")
	}
	if _, err := TimestampForFile("notatimestamp.export.CSV"); err == nil {
		t.Error("TimestampForFile accepted a garbage prefix")
	}
}

func TestDaySlots(t *testing.T) {
	day := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	slots := DaySlots(day)

	if len(slots) != SlotsPerDay {
		t.Fatalf("DaySlots returned %d slots, want %d", len(slots), SlotsPerDay)
	}
	if !slots[0].Equal(day) {
		t.Errorf("first slot = %s, want midnight", slots[0])
	}
	last := slots[len(slots)-1]
	if last.Hour() != 23 || last.Minute() != 0 {
		t.Errorf("last slot = %s, want 23:00", last)
	}
	for _, slot := range slots {
		if slot.Hour() == 23 && slot.Minute() != 0 {
			t.Errorf("slot %s falls inside the publication gap", slot)
		}
	}
}

func TestSlotArithmetic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		fn   func(time.Time) time.Time
		want string
	}{
		{"next mid-day", "20210401121500", NextSlot, "20210401123000"},
		{"next across gap", "20210401230000", NextSlot, "20210402000000"},
		{"prior mid-day", "20210401123000", PriorSlot, "20210401121500"},
		{"prior across gap", "20210402000000", PriorSlot, "20210401230000"},
		{"current on boundary", "20210401121500", CurrentSlot, "20210401121500"},
		{"current mid-interval", "20210401122359", CurrentSlot, "20210401121500"},
		{"current in gap", "20210401233000", CurrentSlot, "20210401230000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(mustTime(t, tt.in))
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}

// zipBody compresses one named file into an archive the way the publisher
// ships them.
func zipBody(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func newTestIndex(t *testing.T) *fileindex.Index {
	t.Helper()
	dataDir := t.TempDir()
	index := fileindex.New(dataDir)
	for _, table := range models.AllTables() {
		for _, tier := range []models.Tier{models.TierRaw, models.TierClean} {
			if err := os.MkdirAll(index.Dir(table, tier), 0755); err != nil {
				t.Fatalf("creating %s/%s dir: %v", table, tier, err)
			}
		}
	}
	return index
}

func TestDownloadFileFetchesOnce(t *testing.T) {
	ts := mustTime(t, "20210401121500")
	name := FileName(models.TableEvents, ts)

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write(zipBody(t, name, "row\tdata\n"))
	}))
	defer srv.Close()

	index := newTestIndex(t)
	d := NewDownloader(index, srv.URL+"/", false)

	rf, fetched, err := d.DownloadFile(context.Background(), models.TableEvents, ts)
	if err != nil {
		t.Fatalf("first download: %v", err)
	}
	if !fetched {
		t.Error("first download reported fetched = false")
	}
	if rf.Name != name {
		t.Errorf("remote file name = %q, want %q", rf.Name, name)
	}

	rawPath := filepath.Join(index.Dir(models.TableEvents, models.TierRaw), name)
	if _, err := os.Stat(rawPath); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if _, err := os.Stat(rawPath + ".zip"); !os.IsNotExist(err) {
		t.Error("zip artifact left behind after extraction")
	}

	_, fetched, err = d.DownloadFile(context.Background(), models.TableEvents, ts)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if fetched {
		t.Error("second download re-fetched an already held file")
	}
	if fetches != 1 {
		t.Errorf("server saw %d fetches, want 1", fetches)
	}
}

func TestDownloadFileNotYetPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	index := newTestIndex(t)
	d := NewDownloader(index, srv.URL+"/", false)

	_, _, err := d.DownloadFile(context.Background(), models.TableGKG, mustTime(t, "20210401121500"))
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	out := models.Outcome{Err: err}
	if !out.NotYetPublished() {
		t.Errorf("404 produced %v, want ErrNotYetPublished", err)
	}
}

func TestDownloadFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	index := newTestIndex(t)
	d := NewDownloader(index, srv.URL+"/", false)

	_, _, err := d.DownloadFile(context.Background(), models.TableEvents, mustTime(t, "20210401121500"))
	var fetchErr *models.FetchError
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if ok := errors.As(err, &fetchErr); !ok {
		t.Errorf("500 produced %T, want *models.FetchError", err)
	}
}

func TestDownloadDay(t *testing.T) {
	day := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	missing := map[string]bool{
		FileName(models.TableMentions, day.Add(6*time.Hour)) + ".zip":                 true,
		FileName(models.TableMentions, day.Add(14*time.Hour+30*time.Minute)) + ".zip": true,
		FileName(models.TableMentions, day.Add(23*time.Hour)) + ".zip":                true,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		if missing[name] {
			http.NotFound(w, r)
			return
		}
		w.Write(zipBody(t, name[:len(name)-len(".zip")], "row\n"))
	}))
	defer srv.Close()

	index := newTestIndex(t)
	d := NewDownloader(index, srv.URL+"/", false)

	outcomes := d.DownloadDay(context.Background(), models.TableMentions, day)
	if len(outcomes) != SlotsPerDay {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), SlotsPerDay)
	}

	succeeded, unpublished := 0, 0
	for _, out := range outcomes {
		switch {
		case out.Success():
			succeeded++
		case out.NotYetPublished():
			unpublished++
		default:
			t.Errorf("unexpected outcome: %s", out)
		}
	}
	if succeeded != SlotsPerDay-3 {
		t.Errorf("%d slots succeeded, want %d", succeeded, SlotsPerDay-3)
	}
	if unpublished != 3 {
		t.Errorf("%d slots unpublished, want 3", unpublished)
	}

	// A rerun finds everything acquirable already held.
	rerun := d.DownloadDay(context.Background(), models.TableMentions, day)
	for _, out := range rerun {
		if out.Success() {
			t.Errorf("rerun re-acquired %s", out.Name)
		}
	}
}

func TestDownloadDayCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		w.Write(zipBody(t, name[:len(name)-len(".zip")], "row\n"))
	}))
	defer srv.Close()

	index := newTestIndex(t)
	d := NewDownloader(index, srv.URL+"/", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := d.DownloadDay(ctx, models.TableEvents, time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC))
	if len(outcomes) != 1 {
		t.Fatalf("canceled run produced %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Err == nil {
		t.Error("canceled run reported no error")
	}
}
