package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedmill/gdeltflow/models"
)

func TestLatestFromLastUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "120847 a1b2c3 http://data.gdeltproject.org/gdeltv2/20210401124500.export.CSV.zip")
		fmt.Fprintln(w, "330212 d4e5f6 http://data.gdeltproject.org/gdeltv2/20210401124500.mentions.CSV.zip")
		fmt.Fprintln(w, "901223 a7b8c9 http://data.gdeltproject.org/gdeltv2/20210401124500.gkg.csv.zip")
	}))
	defer srv.Close()

	d := NewDownloader(newTestIndex(t), srv.URL+"/", false)
	latest, err := d.LatestPublication(context.Background(), srv.URL+"/lastupdate.txt")
	if err != nil {
		t.Fatalf("LatestPublication: %v", err)
	}

	want := mustTime(t, "20210401124500")
	for _, table := range models.AllTables() {
		got, ok := latest[table]
		if !ok {
			t.Errorf("no latest slot for %s", table)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("latest[%s] = %s, want %s", table, got, want)
		}
	}
}

func TestLatestFallsBackToIndexPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lastupdate.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><pre>`)
		fmt.Fprintln(w, `<a href="20210401120000.export.CSV.zip">20210401120000.export.CSV.zip</a>`)
		fmt.Fprintln(w, `<a href="20210401121500.export.CSV.zip">20210401121500.export.CSV.zip</a>`)
		fmt.Fprintln(w, `<a href="20210401121500.gkg.csv.zip">20210401121500.gkg.csv.zip</a>`)
		fmt.Fprintln(w, `<a href="md5sums">md5sums</a>`)
		fmt.Fprintln(w, `</pre></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDownloader(newTestIndex(t), srv.URL+"/", false)
	latest, err := d.LatestPublication(context.Background(), srv.URL+"/lastupdate.txt")
	if err != nil {
		t.Fatalf("LatestPublication with fallback: %v", err)
	}

	want := mustTime(t, "20210401121500")
	if got := latest[models.TableEvents]; !got.Equal(want) {
		t.Errorf("latest[events] = %s, want newest link %s", got, want)
	}
	if got := latest[models.TableGKG]; !got.Equal(want) {
		t.Errorf("latest[gkg] = %s, want %s", got, want)
	}
	if _, ok := latest[models.TableMentions]; ok {
		t.Error("mentions reported a latest slot with no mentions links present")
	}
}

func TestLatestBothSourcesDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDownloader(newTestIndex(t), srv.URL+"/", false)
	if _, err := d.LatestPublication(context.Background(), srv.URL+"/lastupdate.txt"); err == nil {
		t.Fatal("expected an error when both sources are unavailable")
	}
}
