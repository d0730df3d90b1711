// database/loader.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/feedmill/gdeltflow/fileindex"
	"github.com/feedmill/gdeltflow/metrics"
	"github.com/feedmill/gdeltflow/models"
)

// keyedRecord is the shape every normalized record shares: a natural key
// derived from its own fields. Using that key as the document id makes
// repeated loads of the same file idempotent overwrites.
type keyedRecord interface {
	DocumentKey() interface{}
}

// Upserter writes one keyed document to a table's collection. The concrete
// store implementation lives behind this seam so load semantics are testable
// without a running server.
type Upserter interface {
	Upsert(ctx context.Context, table models.Table, key interface{}, doc interface{}) error
}

type mongoUpserter struct{}

func (mongoUpserter) Upsert(ctx context.Context, table models.Table, key interface{}, doc interface{}) error {
	_, err := Collection(table).ReplaceOne(ctx,
		bson.M{"_id": key},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Loader moves clean JSON artifacts into the document store. The loaded set
// is per-run: within one invocation a file is never loaded twice, across
// invocations the natural-key upserts keep reloads harmless.
type Loader struct {
	Index    *fileindex.Index
	Upserter Upserter
	Verbose  bool

	loaded map[models.Table]map[string]struct{}
}

func NewLoader(index *fileindex.Index, verbose bool) *Loader {
	return &Loader{
		Index:    index,
		Upserter: mongoUpserter{},
		Verbose:  verbose,
		loaded:   make(map[models.Table]map[string]struct{}),
	}
}

func (l *Loader) markLoaded(table models.Table, name string) {
	if l.loaded[table] == nil {
		l.loaded[table] = make(map[string]struct{})
	}
	l.loaded[table][name] = struct{}{}
}

func (l *Loader) isLoaded(table models.Table, name string) bool {
	_, ok := l.loaded[table][name]
	return ok
}

// LoadFile loads one clean artifact into the store. Every record goes in as
// an upsert keyed by the record's natural key.
func (l *Loader) LoadFile(ctx context.Context, table models.Table, cleanName string) models.Outcome {
	out := models.Outcome{Table: table, Stage: models.StageLoad, Name: cleanName}

	if l.isLoaded(table, cleanName) {
		out.Skipped = true
		if l.Verbose {
			log.Printf("Loader: %s already loaded this run, skipping", cleanName)
		}
		return out
	}

	path := filepath.Join(l.Index.Dir(table, models.TierClean), cleanName)
	records, err := readCleanArtifact(table, path)
	if err != nil {
		out.Err = &models.LoadError{Name: cleanName, Err: err}
		return out
	}

	n, err := l.loadRecords(ctx, table, records)
	out.Records = n
	if err != nil {
		out.Err = &models.LoadError{Name: cleanName, Err: err}
		return out
	}

	l.markLoaded(table, cleanName)
	metrics.RecordsLoaded.Add(float64(n))
	if l.Verbose {
		log.Printf("Loader: loaded %s (%d records)", cleanName, n)
	}
	return out
}

// loadRecords upserts every record of one artifact; it stops at the first
// store error so a dead store fails one file, not record-by-record.
func (l *Loader) loadRecords(ctx context.Context, table models.Table, records []keyedRecord) (int, error) {
	for i, rec := range records {
		if err := l.Upserter.Upsert(ctx, table, rec.DocumentKey(), rec); err != nil {
			return i, fmt.Errorf("upserting record %v: %w", rec.DocumentKey(), err)
		}
	}
	return len(records), nil
}

// readCleanArtifact decodes the clean JSON array back into typed records.
func readCleanArtifact(table models.Table, path string) ([]keyedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clean file: %w", err)
	}

	switch table {
	case models.TableEvents:
		var recs []models.EventRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decoding clean file: %w", err)
		}
		return asKeyed(recs), nil
	case models.TableMentions:
		var recs []models.MentionRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decoding clean file: %w", err)
		}
		return asKeyed(recs), nil
	case models.TableGKG:
		var recs []models.GKGRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decoding clean file: %w", err)
		}
		return asKeyed(recs), nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

func asKeyed[T keyedRecord](recs []T) []keyedRecord {
	out := make([]keyedRecord, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// LoadTable loads every clean artifact of one table not yet loaded this run.
// Loads run sequentially: the store write path is the bottleneck, and
// ordering failures by file keeps the report readable.
func (l *Loader) LoadTable(ctx context.Context, table models.Table) []models.Outcome {
	if err := l.Index.Refresh(table); err != nil {
		return []models.Outcome{{
			Table: table,
			Stage: models.StageLoad,
			Name:  string(table),
			Err:   fmt.Errorf("refreshing file index: %w", err),
		}}
	}

	names := l.Index.Names(table, models.TierClean)
	outcomes := make([]models.Outcome, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			outcomes = append(outcomes, models.Outcome{
				Table: table, Stage: models.StageLoad, Name: name, Skipped: true,
			})
			continue
		}
		out := l.LoadFile(ctx, table, name)
		if out.Err != nil {
			log.Printf("ERROR loading %s: %v", name, out.Err)
		}
		outcomes = append(outcomes, out)
	}

	succeeded, failed, total := 0, 0, 0
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			failed++
		case !out.Skipped:
			succeeded++
			total += out.Records
		}
	}
	log.Printf("Loader: %s pass done: %d files loaded (%d records), %d failed",
		table, succeeded, total, failed)
	return outcomes
}
