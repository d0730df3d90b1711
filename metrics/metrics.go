// metrics/metrics.go
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdeltflow_files_downloaded_total",
		Help: "Raw-tier files fetched and extracted",
	})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdeltflow_fetch_failures_total",
		Help: "Transport failures while downloading files",
	})

	FilesCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdeltflow_files_cleaned_total",
		Help: "Raw files normalized into the clean tier",
	})

	RecordsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdeltflow_records_loaded_total",
		Help: "Records upserted into the document store",
	})

	SchedulerIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdeltflow_scheduler_iterations_total",
		Help: "Completed realtime scheduler iterations",
	})

	LastSlotTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdeltflow_last_slot_timestamp_seconds",
		Help: "Publication timestamp of the last successfully processed slot",
	})
)

// Serve exposes /metrics on the given port. Intended to run in its own
// goroutine for the life of the process.
func Serve(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics: listening on :%s/metrics", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("ERROR Metrics: server stopped: %v", err)
	}
}
