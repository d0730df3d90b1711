// cleaner/cleaner.go
package cleaner

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jszwec/csvutil"

	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/metrics"
	"github.com/feedmill/gdeltflow/models"
)

// Cleaner normalizes raw tab-delimited feed files into typed JSON artifacts
// under the clean tier. Cleaning is all-or-nothing per file: a schema or cast
// failure anywhere leaves no clean artifact behind.
type Cleaner struct {
	Index   *fileindex.Index
	Verbose bool
}

func NewCleaner(index *fileindex.Index, verbose bool) *Cleaner {
	return &Cleaner{Index: index, Verbose: verbose}
}

// layoutReader wraps the csv reader feeding csvutil and validates each
// record's field count against the published column layout, so a malformed
// file fails with the name of the first column that went missing or the
// position of the first excess one.
type layoutReader struct {
	r       *csv.Reader
	columns []string
	// skipJunk drops records that are short AND mostly empty instead of
	// failing; the knowledge-graph feed ships a few of those per file.
	skipJunk bool
	skipped  int
}

func (lr *layoutReader) Read() ([]string, error) {
	for {
		rec, err := lr.r.Read()
		if err != nil {
			return nil, err
		}
		if len(rec) == len(lr.columns) {
			return rec, nil
		}
		if lr.skipJunk && len(rec) < len(lr.columns) && populated(rec) < 5 {
			lr.skipped++
			continue
		}
		if len(rec) < len(lr.columns) {
			return nil, &castError{
				column: lr.columns[len(rec)],
				err:    fmt.Errorf("record has %d of %d fields", len(rec), len(lr.columns)),
			}
		}
		return nil, &castError{
			column: fmt.Sprintf("unexpected column %d", len(lr.columns)+1),
			err:    fmt.Errorf("record has %d of %d fields", len(rec), len(lr.columns)),
		}
	}
}

func populated(rec []string) int {
	n := 0
	for _, v := range rec {
		if v != "" {
			n++
		}
	}
	return n
}

func newLayoutReader(r io.Reader, table models.Table) *layoutReader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return &layoutReader{
		r:        cr,
		columns:  table.OriginalColumns(),
		skipJunk: table == models.TableGKG,
	}
}

// CleanFile normalizes one raw file into its clean JSON artifact. Already
// clean files are skipped. On any failure the partial artifact is removed and
// the raw file is left untouched for a later retry.
func (c *Cleaner) CleanFile(table models.Table, rawName string) models.Outcome {
	out := models.Outcome{Table: table, Stage: models.StageClean, Name: rawName}

	cleanName := table.CleanName(rawName)
	if c.Index.Contains(table, models.TierClean, cleanName) {
		out.Skipped = true
		if c.Verbose {
			log.Printf("Cleaner: %s already clean, skipping", rawName)
		}
		return out
	}

	rawPath := filepath.Join(c.Index.Dir(table, models.TierRaw), rawName)
	cleanPath := filepath.Join(c.Index.Dir(table, models.TierClean), cleanName)

	records, skipped, err := c.convertFile(table, rawPath)
	if err != nil {
		var cast *castError
		if errors.As(err, &cast) {
			out.Err = &models.CleanError{Name: rawName, Column: cast.column, Err: cast.err}
		} else {
			out.Err = &models.CleanError{Name: rawName, Err: err}
		}
		return out
	}

	if err := writeCleanArtifact(cleanPath, records); err != nil {
		out.Err = &models.CleanError{Name: rawName, Err: err}
		return out
	}

	c.Index.Register(table, models.TierClean, cleanName)
	metrics.FilesCleaned.Inc()
	out.Records = recordCount(records)
	if c.Verbose {
		log.Printf("Cleaner: cleaned %s -> %s (%d records, %d junk rows dropped)",
			rawName, cleanName, out.Records, skipped)
	}
	return out
}

// convertFile decodes the raw tab-delimited file into typed records. The
// return type is kept concrete per table so the clean artifact marshals with
// each table's own column names.
func (c *Cleaner) convertFile(table models.Table, rawPath string) (interface{}, int, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, 0, fmt.Errorf("opening raw file: %w", err)
	}
	defer f.Close()

	lr := newLayoutReader(f, table)
	dec, err := csvutil.NewDecoder(lr, table.OriginalColumns()...)
	if err != nil {
		return nil, 0, fmt.Errorf("building decoder: %w", err)
	}

	switch table {
	case models.TableEvents:
		recs, err := decodeEvents(dec)
		return recs, lr.skipped, err
	case models.TableMentions:
		recs, err := decodeMentions(dec)
		return recs, lr.skipped, err
	case models.TableGKG:
		recs, err := decodeGKG(dec)
		return recs, lr.skipped, err
	}
	return nil, 0, fmt.Errorf("unknown table %q", table)
}

func decodeEvents(dec *csvutil.Decoder) ([]models.EventRecord, error) {
	var out []models.EventRecord
	for {
		var row eventRow
		if err := dec.Decode(&row); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func decodeMentions(dec *csvutil.Decoder) ([]models.MentionRecord, error) {
	var out []models.MentionRecord
	for {
		var row mentionRow
		if err := dec.Decode(&row); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func decodeGKG(dec *csvutil.Decoder) ([]models.GKGRecord, error) {
	var out []models.GKGRecord
	for {
		var row gkgRow
		if err := dec.Decode(&row); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// writeCleanArtifact writes the JSON array through a temp file and renames it
// into place, so a crash mid-write never leaves a half-written clean file the
// loader would trust.
func writeCleanArtifact(path string, records interface{}) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".clean-*")
	if err != nil {
		return fmt.Errorf("creating clean file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encoding clean records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing clean file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("placing clean file: %w", err)
	}
	return nil
}

func recordCount(records interface{}) int {
	switch v := records.(type) {
	case []models.EventRecord:
		return len(v)
	case []models.MentionRecord:
		return len(v)
	case []models.GKGRecord:
		return len(v)
	}
	return 0
}

// CleanTable cleans every raw file of one table that has no clean artifact
// yet. Each file gets its own short-lived goroutine, capped by the configured
// clean worker count; a bad file fails alone and never stops its siblings.
func (c *Cleaner) CleanTable(ctx context.Context, table models.Table) []models.Outcome {
	if err := c.Index.Refresh(table); err != nil {
		return []models.Outcome{{
			Table: table,
			Stage: models.StageClean,
			Name:  string(table),
			Err:   fmt.Errorf("refreshing file index: %w", err),
		}}
	}

	names := c.Index.Names(table, models.TierRaw)
	workers := config.AppConfig.Workers.Clean
	if workers < 1 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, workers)
		outcomes = make([]models.Outcome, 0, len(names))
	)
	for _, name := range names {
		if ctx.Err() != nil {
			mu.Lock()
			outcomes = append(outcomes, models.Outcome{
				Table: table, Stage: models.StageClean, Name: name,
				Skipped: true,
			})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			out := c.CleanFile(table, name)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			failed++
			log.Printf("ERROR cleaning %s: %v", out.Name, out.Err)
		case !out.Skipped:
			succeeded++
		}
	}
	log.Printf("Cleaner: %s pass done: %d cleaned, %d failed, %d total raw files",
		table, succeeded, failed, len(names))
	return outcomes
}
