// services/report_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/database"
	"github.com/feedmill/gdeltflow/models"
)

// ReportGenerator turns a table projection into a named report artifact.
// Statistical profiling lives behind this seam; the pipeline only supplies
// the data and a place to put the result.
type ReportGenerator interface {
	Generate(proj models.TableProjection) (name string, content []byte, err error)
}

// summaryGenerator is the built-in generator: a JSON descriptive summary of
// the projection (record count, per-column populated counts, time range).
type summaryGenerator struct{}

type columnSummary struct {
	Column    string `json:"column"`
	Populated int    `json:"populated"`
}

type projectionSummary struct {
	Table     models.Table    `json:"table"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Records   int             `json:"records"`
	Columns   []columnSummary `json:"columns"`
	Generated time.Time       `json:"generated"`
}

func (summaryGenerator) Generate(proj models.TableProjection) (string, []byte, error) {
	summary := projectionSummary{
		Table:     proj.Table,
		From:      proj.From,
		To:        proj.To,
		Records:   len(proj.Records),
		Generated: time.Now().UTC(),
	}
	for _, col := range proj.Columns {
		populated := 0
		for _, rec := range proj.Records {
			if v, ok := rec[col]; ok && v != nil {
				populated++
			}
		}
		summary.Columns = append(summary.Columns, columnSummary{Column: col, Populated: populated})
	}

	content, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encoding report: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s_summary.json",
		proj.Table, proj.From.Format("20060102150405"), proj.To.Format("20060102150405"))
	return name, content, nil
}

// GenerateReport queries the store for one table over [from, to) and writes
// the generator's artifact to the configured report directory.
func GenerateReport(ctx context.Context, gen ReportGenerator, table models.Table, from, to time.Time) (string, error) {
	if gen == nil {
		gen = summaryGenerator{}
	}

	proj, err := database.FindRecords(ctx, table, from, to)
	if err != nil {
		return "", fmt.Errorf("collecting %s records: %w", table, err)
	}

	name, content, err := gen.Generate(proj)
	if err != nil {
		return "", fmt.Errorf("generating %s report: %w", table, err)
	}

	path := filepath.Join(config.AppConfig.Storage.ReportDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("writing report %s: %w", name, err)
	}
	log.Printf("Service: Wrote %s report for %d record(s) to %s", table, len(proj.Records), path)
	return path, nil
}
