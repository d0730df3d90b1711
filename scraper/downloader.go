// scraper/downloader.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/metrics"
	"github.com/feedmill/gdeltflow/models"
)

// timestampLayout is the 14-digit UTC publication instant every GDELT file
// name starts with.
const timestampLayout = "20060102150405"

// FileName maps a table and publication timestamp to the publisher's exact
// file name (without the .zip suffix the transport adds). This mapping is
// bit-exact with GDELT's scheme and is the basis of every idempotency check.
func FileName(table models.Table, ts time.Time) string {
	return ts.UTC().Format(timestampLayout) + "." + table.Extension()
}

// ZipName is the name of the compressed artifact as published.
func ZipName(table models.Table, ts time.Time) string {
	return FileName(table, ts) + ".zip"
}

// FileURL forms the full download URL for one table at one timestamp.
func FileURL(urlBase string, table models.Table, ts time.Time) string {
	return urlBase + ZipName(table, ts)
}

// TableForFile recovers the table from a published file name by its
// extension. Inverse of FileName for all valid names.
func TableForFile(name string) (models.Table, error) {
	name = strings.TrimSuffix(name, ".zip")
	for _, table := range models.AllTables() {
		if strings.HasSuffix(name, "."+table.Extension()) {
			return table, nil
		}
	}
	return "", fmt.Errorf("file name %q matches no known table extension", name)
}

// TimestampForFile recovers the publication instant from a file name.
func TimestampForFile(name string) (time.Time, error) {
	base := filepath.Base(name)
	if len(base) < len(timestampLayout) {
		return time.Time{}, fmt.Errorf("file name %q too short for a timestamp prefix", name)
	}
	ts, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("file name %q has no valid timestamp prefix: %w", name, err)
	}
	return ts, nil
}

// SlotsPerDay is the number of publication instants per calendar day:
// 00:00 through 23:00 UTC at 15-minute steps. The publisher goes quiet
// between the 23:00 file and the next day's 00:00 file.
const SlotsPerDay = 93

// DaySlots enumerates every valid publication instant for one calendar day.
func DaySlots(date time.Time) []time.Time {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	slots := make([]time.Time, 0, SlotsPerDay)
	for hour := 0; hour < 23; hour++ {
		for _, minute := range []int{0, 15, 30, 45} {
			slots = append(slots, day.Add(time.Duration(hour)*time.Hour+time.Duration(minute)*time.Minute))
		}
	}
	slots = append(slots, day.Add(23*time.Hour))
	return slots
}

// CurrentSlot returns the nearest prior cadence boundary for a wall-clock
// instant, folding the nightly publication gap onto the 23:00 slot.
func CurrentSlot(now time.Time) time.Time {
	slot := now.UTC().Truncate(15 * time.Minute)
	if slot.Hour() == 23 && slot.Minute() > 0 {
		slot = slot.Add(-time.Duration(slot.Minute()) * time.Minute)
	}
	return slot
}

// NextSlot returns the publication instant following ts, accounting for the
// gap after the 23:00 file.
func NextSlot(ts time.Time) time.Time {
	if ts.Hour() == 23 {
		return ts.Add(time.Hour - time.Duration(ts.Minute())*time.Minute)
	}
	return ts.Add(15 * time.Minute)
}

// PriorSlot returns the publication instant preceding ts.
func PriorSlot(ts time.Time) time.Time {
	if ts.Hour() == 0 && ts.Minute() == 0 {
		return ts.Add(-time.Hour)
	}
	return ts.Add(-15 * time.Minute)
}

// Downloader is the acquisition manager: it resolves table/timestamp pairs to
// remote names, consults the file index for idempotency, and brings missing
// files into the raw tier exactly once.
type Downloader struct {
	Index   *fileindex.Index
	URLBase string
	Client  *http.Client
	Verbose bool
}

func NewDownloader(index *fileindex.Index, urlBase string, verbose bool) *Downloader {
	return &Downloader{
		Index:   index,
		URLBase: urlBase,
		Client:  &http.Client{Timeout: 60 * time.Second},
		Verbose: verbose,
	}
}

// IsDownloaded reports whether the file for (table, ts) already exists in
// either local tier. A cleaned file whose raw original was purged still
// counts as downloaded.
func (d *Downloader) IsDownloaded(table models.Table, ts time.Time) bool {
	name := FileName(table, ts)
	return d.Index.Contains(table, models.TierRaw, name) ||
		d.Index.Contains(table, models.TierClean, table.CleanName(name))
}

// DownloadFile fetches the named archive, extracts the TSV into the raw
// tier, and registers it in the file index. The network call is skipped
// entirely when the file is already held locally (fetched == false). A 404
// is the publisher's normal "not published yet" signal and surfaces as
// models.ErrNotYetPublished; any other transport problem is a retryable
// FetchError.
func (d *Downloader) DownloadFile(ctx context.Context, table models.Table, ts time.Time) (rf models.RemoteFile, fetched bool, err error) {
	name := FileName(table, ts)
	rf = models.RemoteFile{Table: table, Timestamp: ts.UTC(), Tier: models.TierRaw, Name: name}

	if d.IsDownloaded(table, ts) {
		if d.Verbose {
			log.Printf("Scraper: %s already downloaded, skipping.", name)
		}
		return rf, false, nil
	}

	url := FileURL(d.URLBase, table, ts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rf, false, &models.FetchError{Name: name, Err: err}
	}

	start := time.Now()
	resp, err := d.Client.Do(req)
	if err != nil {
		metrics.FetchFailures.Inc()
		return rf, false, &models.FetchError{Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return rf, false, fmt.Errorf("%s: %w", name, models.ErrNotYetPublished)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.FetchFailures.Inc()
		return rf, false, &models.FetchError{Name: name, Err: fmt.Errorf("received status code %d from %s", resp.StatusCode, url)}
	}

	rawDir := d.Index.Dir(table, models.TierRaw)
	zipPath := filepath.Join(rawDir, ZipName(table, ts))
	if err := writeStream(zipPath, resp.Body); err != nil {
		metrics.FetchFailures.Inc()
		return rf, false, &models.FetchError{Name: name, Err: err}
	}

	if err := extractZip(zipPath, rawDir); err != nil {
		os.Remove(zipPath)
		return rf, false, &models.FetchError{Name: name, Err: err}
	}
	if err := os.Remove(zipPath); err != nil {
		log.Printf("WARN Scraper: failed to remove zip %s: %v", zipPath, err)
	}

	d.Index.Register(table, models.TierRaw, name)
	metrics.FilesDownloaded.Inc()
	if d.Verbose {
		log.Printf("Scraper: downloaded %s (%0.2fs)", name, time.Since(start).Seconds())
	}
	return rf, true, nil
}

// DownloadDay fetches every publication slot of one calendar day for a
// table, collecting per-slot outcomes and never aborting the batch on an
// individual failure.
func (d *Downloader) DownloadDay(ctx context.Context, table models.Table, date time.Time) []models.Outcome {
	if err := d.Index.Refresh(table); err != nil {
		return []models.Outcome{{Table: table, Stage: models.StageDownload, Name: date.Format("2006/01/02"), Err: err}}
	}

	var outcomes []models.Outcome
	for _, slot := range DaySlots(date) {
		if ctx.Err() != nil {
			outcomes = append(outcomes, models.Outcome{
				Table: table, Stage: models.StageDownload, Name: FileName(table, slot),
				Err: ctx.Err(),
			})
			break
		}
		rf, fetched, err := d.DownloadFile(ctx, table, slot)
		outcomes = append(outcomes, models.Outcome{
			Table:   table,
			Stage:   models.StageDownload,
			Name:    rf.Name,
			Skipped: err == nil && !fetched,
			Err:     err,
		})
	}

	succeeded, skipped, failed := 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Skipped:
			skipped++
		default:
			succeeded++
		}
	}
	log.Printf("Scraper: day %s table %s: %d acquired, %d skipped, %d unavailable/failed",
		date.Format("2006/01/02"), table, succeeded, skipped, failed)
	return outcomes
}

func writeStream(path string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", path, err)
	}
	defer outFile.Close()
	if _, err := io.Copy(outFile, body); err != nil {
		return fmt.Errorf("failed to copy downloaded content to %s: %w", path, err)
	}
	return nil
}

// extractZip unpacks a downloaded archive into destDir. GDELT archives hold
// exactly one TSV, but the loop tolerates more.
func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		outPath := filepath.Join(destDir, filepath.Base(f.Name))
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to read archived file %s: %w", f.Name, err)
		}
		if err := writeStream(outPath, rc); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}
	return nil
}
