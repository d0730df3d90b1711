// commands.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedmill/gdeltflow/models"
	"github.com/feedmill/gdeltflow/services"
)

const dateLayout = "2006/01/02"

var (
	flagVerbose bool
	flagTables  []string

	flagDate string
	flagFrom string
	flagTo   string

	flagWindow int
	flagUnit   string

	flagReportFrom string
	flagReportTo   string
)

var rootCmd = &cobra.Command{
	Use:           "gdeltflow",
	Short:         "GDELT 2.1 feed acquisition, normalization, and store loading",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the one-shot pipeline over a date or date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := batchDates()
		if err != nil {
			return err
		}
		tables, err := selectedTables()
		if err != nil {
			return err
		}

		ctx := signalContext()
		summary, err := services.RunBatch(ctx, dates, tables, flagVerbose)
		printSummary(summary)
		return err
	},
}

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Follow the publisher's 15-minute cadence for a bounded window",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := selectedTables()
		if err != nil {
			return err
		}

		ctx := signalContext()
		summary, err := services.RunRealtime(ctx, tables, flagWindow, flagUnit, flagVerbose)
		printSummary(summary)
		return err
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a descriptive summary of stored records over a time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := selectedTables()
		if err != nil {
			return err
		}
		from, err := time.ParseInLocation(dateLayout, flagReportFrom, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid --from date %q (want YYYY/MM/DD): %w", flagReportFrom, err)
		}
		to, err := time.ParseInLocation(dateLayout, flagReportTo, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid --to date %q (want YYYY/MM/DD): %w", flagReportTo, err)
		}
		to = to.AddDate(0, 0, 1) // inclusive end date

		ctx := signalContext()
		for _, table := range tables {
			if _, err := services.GenerateReport(ctx, nil, table, from, to); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log per-file progress")
	rootCmd.PersistentFlags().StringSliceVarP(&flagTables, "tables", "t", []string{"events", "mentions", "gkg"},
		"tables to process (events, mentions, gkg)")

	batchCmd.Flags().StringVar(&flagDate, "date", "", "single UTC date (YYYY/MM/DD)")
	batchCmd.Flags().StringVar(&flagFrom, "from", "", "range start, inclusive (YYYY/MM/DD)")
	batchCmd.Flags().StringVar(&flagTo, "to", "", "range end, inclusive (YYYY/MM/DD)")

	realtimeCmd.Flags().IntVarP(&flagWindow, "window", "w", 1, "polling window length")
	realtimeCmd.Flags().StringVarP(&flagUnit, "unit", "u", "file", "window unit: file, hour, or day")

	reportCmd.Flags().StringVar(&flagReportFrom, "from", "", "range start, inclusive (YYYY/MM/DD)")
	reportCmd.Flags().StringVar(&flagReportTo, "to", "", "range end, inclusive (YYYY/MM/DD)")
	reportCmd.MarkFlagRequired("from")
	reportCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(batchCmd, realtimeCmd, reportCmd)
}

// Execute runs the CLI tree.
func Execute() error {
	return rootCmd.Execute()
}

func batchDates() ([]time.Time, error) {
	switch {
	case flagDate != "" && (flagFrom != "" || flagTo != ""):
		return nil, fmt.Errorf("--date and --from/--to are mutually exclusive")
	case flagDate != "":
		d, err := time.ParseInLocation(dateLayout, flagDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q (want YYYY/MM/DD): %w", flagDate, err)
		}
		return []time.Time{d}, nil
	case flagFrom != "" && flagTo != "":
		from, err := time.ParseInLocation(dateLayout, flagFrom, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --from %q (want YYYY/MM/DD): %w", flagFrom, err)
		}
		to, err := time.ParseInLocation(dateLayout, flagTo, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --to %q (want YYYY/MM/DD): %w", flagTo, err)
		}
		if to.Before(from) {
			return nil, fmt.Errorf("--to %s is before --from %s", flagTo, flagFrom)
		}
		return services.DatesBetween(from, to), nil
	}
	return nil, fmt.Errorf("batch needs --date or both --from and --to")
}

func selectedTables() ([]models.Table, error) {
	tables := make([]models.Table, 0, len(flagTables))
	for _, raw := range flagTables {
		table, err := models.ParseTable(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// signalContext cancels on SIGINT/SIGTERM so a long session shuts down at the
// next safe point instead of mid-write.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		log.Println("Shutdown signal received, finishing current unit...")
		cancel()
	}()
	return ctx
}

func printSummary(summary models.Summary) {
	succeeded, skipped, failed := summary.Counts()
	fmt.Printf("done: %d succeeded, %d skipped, %d failed\n", succeeded, skipped, failed)
	if failed > 0 || flagVerbose {
		for _, out := range summary.Outcomes {
			if out.Err != nil || flagVerbose {
				fmt.Println("  " + out.String())
			}
		}
	}
}
