// services/realtime_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/feedmill/gdeltflow/cleaner"
	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/database"
	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/metrics"
	"github.com/feedmill/gdeltflow/models"
	"github.com/feedmill/gdeltflow/scraper"
)

type schedulerState string

const (
	stateIdle       schedulerState = "IDLE"
	statePolling    schedulerState = "POLLING"
	stateProcessing schedulerState = "PROCESSING"
	stateWaiting    schedulerState = "WAITING"
	stateDone       schedulerState = "DONE"
	stateFailed     schedulerState = "FAILED"
)

// realtimeDeps is the seam between the scheduler loop and the pipeline
// components and clocks, so cadence logic is testable at millisecond scale.
type realtimeDeps struct {
	latest       func(ctx context.Context) (map[models.Table]time.Time, error)
	downloadFile func(ctx context.Context, table models.Table, ts time.Time) (models.RemoteFile, bool, error)
	cleanFile    func(table models.Table, rawName string) models.Outcome
	loadFile     func(ctx context.Context, table models.Table, cleanName string) models.Outcome
	storeAlive   func(ctx context.Context) error
	storageAlive func() error
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IterationsFor converts a polling window into slot iterations: one slot per
// file, four per hour, ninety-three per day of the publication schedule.
func IterationsFor(window int, unit string) (int, error) {
	if window < 1 {
		return 0, fmt.Errorf("window must be positive, got %d", window)
	}
	switch unit {
	case "file":
		return window, nil
	case "hour":
		return window * 4, nil
	case "day":
		return window * scraper.SlotsPerDay, nil
	}
	return 0, fmt.Errorf("unknown window unit %q (want file, hour, or day)", unit)
}

// RunRealtime follows the publisher's 15-minute cadence for a bounded number
// of slots, running download, clean, and load for every table at each slot.
func RunRealtime(ctx context.Context, tables []models.Table, window int, windowUnit string, verbose bool) (models.Summary, error) {
	index := fileindex.New(config.AppConfig.Storage.DataDir)
	dl := scraper.NewDownloader(index, config.AppConfig.Feed.URLBase, verbose)
	cl := cleaner.NewCleaner(index, verbose)
	ld := database.NewLoader(index, verbose)

	for _, table := range tables {
		if err := index.Refresh(table); err != nil {
			return models.Summary{}, fmt.Errorf("refreshing file index: %w", err)
		}
	}

	deps := realtimeDeps{
		latest: func(ctx context.Context) (map[models.Table]time.Time, error) {
			return dl.LatestPublication(ctx, config.AppConfig.Feed.LastUpdateURL)
		},
		downloadFile: dl.DownloadFile,
		cleanFile:    cl.CleanFile,
		loadFile:     ld.LoadFile,
		storeAlive:   database.Ping,
		storageAlive: func() error {
			for _, table := range tables {
				if _, err := os.Stat(index.Dir(table, models.TierRaw)); err != nil {
					return err
				}
			}
			return nil
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
	return runRealtime(ctx, deps, tables, window, windowUnit, verbose,
		config.AppConfig.Realtime.RetryDelay,
		config.AppConfig.Realtime.SlotTimeout,
		config.AppConfig.Realtime.SafetyMargin)
}

func runRealtime(ctx context.Context, deps realtimeDeps, tables []models.Table,
	window int, windowUnit string, verbose bool,
	retryDelay, slotTimeout, safetyMargin time.Duration) (models.Summary, error) {

	summary := models.Summary{Started: deps.now().UTC()}
	defer func() { summary.Finished = deps.now().UTC() }()

	// IDLE: validate the session before touching the network.
	state := stateIdle
	iterations, err := IterationsFor(window, windowUnit)
	if err != nil {
		return summary, err
	}
	if len(tables) == 0 {
		return summary, fmt.Errorf("no tables selected")
	}
	win := models.PollWindow{
		RemainingIterations: iterations,
		Interval:            config.AppConfig.Realtime.Cadence,
	}
	log.Printf("Service: Starting realtime session: %d iteration(s) over %d table(s)", iterations, len(tables))

	slot := resolveFirstSlot(ctx, deps, verbose)

	// The prior slot is swept on the first iteration of a multi-slot session
	// so a session started mid-slot never leaves a coverage hole behind it.
	if iterations > 1 {
		prior := scraper.PriorSlot(slot)
		for _, table := range tables {
			summary.Add(processSlotTable(ctx, deps, table, prior, 0, 0))
		}
	}

	var (
		acquired []acquiredFile
		fatal    *models.SchedulerFatal
	)
	state = statePolling
	for {
		switch state {
		case statePolling:
			acquired = acquired[:0]
			for _, table := range tables {
				rf, err := downloadWithBackoff(ctx, deps, table, slot, retryDelay, slotTimeout)
				if err != nil {
					if errors.Is(err, models.ErrNotYetPublished) {
						log.Printf("Service: %s slot %s never published within timeout, skipping",
							table, slot.Format(time.RFC3339))
						summary.Add(models.Outcome{Table: table, Stage: models.StageDownload, Name: rf.Name, Skipped: true})
						continue
					}
					summary.Add(models.Outcome{Table: table, Stage: models.StageDownload, Name: rf.Name, Err: err})
					if serr := deps.storageAlive(); serr != nil {
						fatal = &models.SchedulerFatal{Reason: "local storage unreachable", Err: serr}
					}
					continue
				}
				acquired = append(acquired, acquiredFile{table: table, name: rf.Name})
			}
			state = stateProcessing

		case stateProcessing:
			for _, af := range acquired {
				out := deps.cleanFile(af.table, af.name)
				if out.Err == nil {
					out = deps.loadFile(ctx, af.table, af.table.CleanName(af.name))
				}
				summary.Add(out)
				if out.Err == nil {
					continue
				}
				var loadErr *models.LoadError
				if errors.As(out.Err, &loadErr) {
					if serr := deps.storeAlive(ctx); serr != nil {
						fatal = &models.SchedulerFatal{Reason: "document store unreachable", Err: serr}
					}
				} else if serr := deps.storageAlive(); serr != nil {
					fatal = &models.SchedulerFatal{Reason: "local storage unreachable", Err: serr}
				}
			}
			win.RemainingIterations--
			metrics.SchedulerIterations.Inc()
			metrics.LastSlotTimestamp.Set(float64(slot.Unix()))
			if fatal != nil {
				state = stateFailed
			} else {
				win.LastSuccess = deps.now().UTC()
				state = stateWaiting
			}

		case stateWaiting:
			if win.RemainingIterations <= 0 {
				state = stateDone
				continue
			}
			next := scraper.NextSlot(slot)
			// Wake shortly before the boundary; the not-yet-published
			// backoff absorbs the early poll.
			wait := next.Sub(deps.now()) - safetyMargin
			if verbose {
				log.Printf("Service: next slot %s, waiting %s", next.Format(time.RFC3339), wait.Round(time.Second))
			}
			if wait > 0 {
				if err := deps.sleep(ctx, wait); err != nil {
					markRemaining(&summary, tables, slot, win.RemainingIterations)
					return summary, err
				}
			}
			slot = next
			state = statePolling

		case stateDone:
			log.Printf("Service: Realtime session finished: %s", summary.String())
			return summary, nil

		case stateFailed:
			markRemaining(&summary, tables, slot, win.RemainingIterations)
			log.Printf("ERROR Service: Realtime session aborted: %s", fatal.Reason)
			return summary, fatal
		}
	}
}

// acquiredFile is a raw file pulled down during POLLING and queued for
// the PROCESSING stage of the same slot.
type acquiredFile struct {
	table models.Table
	name  string
}

// resolveFirstSlot asks the publisher for its latest slot and falls back to
// the nearest prior cadence boundary of the local clock.
func resolveFirstSlot(ctx context.Context, deps realtimeDeps, verbose bool) time.Time {
	latest, err := deps.latest(ctx)
	if err != nil {
		log.Printf("ERROR Service: latest publication lookup failed, using local clock: %v", err)
		return scraper.CurrentSlot(deps.now())
	}
	var slot time.Time
	for _, ts := range latest {
		if ts.After(slot) {
			slot = ts
		}
	}
	if slot.IsZero() {
		return scraper.CurrentSlot(deps.now())
	}
	if verbose {
		log.Printf("Service: publisher's latest slot is %s", slot.Format(time.RFC3339))
	}
	return slot
}

// processSlotTable runs the full per-file pipeline for one (table, slot)
// pair in a single pass. The cadence loop splits the same work across its
// POLLING and PROCESSING states; this form serves the prior-slot sweep,
// where an absent file is simply skipped. The returned outcome reports the
// furthest stage reached.
func processSlotTable(ctx context.Context, deps realtimeDeps, table models.Table,
	slot time.Time, retryDelay, slotTimeout time.Duration) models.Outcome {

	rf, err := downloadWithBackoff(ctx, deps, table, slot, retryDelay, slotTimeout)
	if err != nil {
		if errors.Is(err, models.ErrNotYetPublished) {
			log.Printf("Service: %s slot %s never published within timeout, skipping",
				table, slot.Format(time.RFC3339))
			return models.Outcome{Table: table, Stage: models.StageDownload, Name: rf.Name, Skipped: true}
		}
		return models.Outcome{Table: table, Stage: models.StageDownload, Name: rf.Name, Err: err}
	}

	out := deps.cleanFile(table, rf.Name)
	if out.Err != nil {
		return out
	}

	return deps.loadFile(ctx, table, table.CleanName(rf.Name))
}

// downloadWithBackoff retries the not-yet-published case in fixed steps until
// the per-slot timeout elapses; any other failure returns immediately.
func downloadWithBackoff(ctx context.Context, deps realtimeDeps, table models.Table,
	slot time.Time, retryDelay, slotTimeout time.Duration) (models.RemoteFile, error) {

	deadline := deps.now().Add(slotTimeout)
	for {
		rf, _, err := deps.downloadFile(ctx, table, slot)
		if err == nil {
			return rf, nil
		}
		if !errors.Is(err, models.ErrNotYetPublished) {
			return rf, err
		}
		if retryDelay <= 0 || !deps.now().Add(retryDelay).Before(deadline) {
			return rf, err
		}
		if serr := deps.sleep(ctx, retryDelay); serr != nil {
			return rf, serr
		}
	}
}

// markRemaining records the slots a terminated session never reached.
func markRemaining(summary *models.Summary, tables []models.Table, slot time.Time, remaining int) {
	for i := 0; i < remaining; i++ {
		slot = scraper.NextSlot(slot)
		for _, table := range tables {
			summary.Add(models.Outcome{
				Table:   table,
				Stage:   models.StageDownload,
				Name:    scraper.FileName(table, slot),
				Skipped: true,
			})
		}
	}
}
