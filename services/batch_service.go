// services/batch_service.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/feedmill/gdeltflow/cleaner"
	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/database"
	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/models"
	"github.com/feedmill/gdeltflow/scraper"
)

// batchDeps is the seam between batch orchestration and the pipeline
// components, so stage ordering is testable without network or store.
type batchDeps struct {
	downloadDay func(ctx context.Context, table models.Table, date time.Time) []models.Outcome
	cleanTable  func(ctx context.Context, table models.Table) []models.Outcome
	loadTable   func(ctx context.Context, table models.Table) []models.Outcome
}

// RunBatch runs the one-shot pipeline over a set of UTC dates: download every
// slot of every date, then clean, then load, per table. Stages never
// interleave: a table's clean pass starts only after all its downloads are
// done, its load pass only after all its cleans.
func RunBatch(ctx context.Context, dates []time.Time, tables []models.Table, verbose bool) (models.Summary, error) {
	index := fileindex.New(config.AppConfig.Storage.DataDir)
	dl := scraper.NewDownloader(index, config.AppConfig.Feed.URLBase, verbose)
	cl := cleaner.NewCleaner(index, verbose)
	ld := database.NewLoader(index, verbose)

	deps := batchDeps{
		downloadDay: dl.DownloadDay,
		cleanTable:  cl.CleanTable,
		loadTable:   ld.LoadTable,
	}
	return runBatch(ctx, deps, dates, tables)
}

// Stages run globally: every download across all tables and dates finishes
// before the first clean starts, and every clean before the first load, so
// acquisition problems surface before any normalization or store work is
// spent.
func runBatch(ctx context.Context, deps batchDeps, dates []time.Time, tables []models.Table) (models.Summary, error) {
	summary := models.Summary{Started: time.Now().UTC()}
	log.Printf("Service: Starting batch run: %d date(s), %d table(s)", len(dates), len(tables))

download:
	for _, table := range tables {
		for _, date := range dates {
			if ctx.Err() != nil {
				break download
			}
			for _, out := range deps.downloadDay(ctx, table, date) {
				summary.Add(out)
			}
		}
	}

	for _, table := range tables {
		if ctx.Err() != nil {
			break
		}
		for _, out := range deps.cleanTable(ctx, table) {
			summary.Add(out)
		}
	}

	for _, table := range tables {
		if ctx.Err() != nil {
			break
		}
		for _, out := range deps.loadTable(ctx, table) {
			summary.Add(out)
		}
	}

	if ctx.Err() != nil {
		log.Printf("Service: batch run canceled")
	}
	summary.Finished = time.Now().UTC()
	log.Printf("Service: Batch run finished: %s", summary.String())
	return summary, ctx.Err()
}

// DatesBetween expands an inclusive [from, to] date range into midnight-UTC
// days for the batch runner.
func DatesBetween(from, to time.Time) []time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
