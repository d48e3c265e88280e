package crawler

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const (
	metricPages          = "crawler_pages_total"
	metricPageErrors     = "crawler_page_errors_total"
	metricDocumentWrites = "crawler_document_writes_total"
	metricUpserts        = "crawler_upserts_total"
)

var (
	// TotalPages tracks the number of pages processed, successful or not.
	TotalPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricPages,
		Help: "The total number of pages processed by the traversal engine.",
	})
	// TotalPageErrors tracks the number of page loads that failed.
	TotalPageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricPageErrors,
		Help: "The total number of page loads that ended in an error record.",
	})
	// TotalDocumentWrites tracks records written to the document sink.
	TotalDocumentWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricDocumentWrites,
		Help: "The total number of records appended to the document file.",
	})
	// TotalUpserts tracks records upserted into the relational sink.
	TotalUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricUpserts,
		Help: "The total number of records upserted into the database.",
	})
)

// CounterSnapshot holds the crawl counter totals read back from the metrics
// registry, reported in the close-out summary.
type CounterSnapshot struct {
	Pages          float64
	PageErrors     float64
	DocumentWrites float64
	Upserts        float64
}

// Snapshot gathers the default registry and returns the current totals.
func Snapshot() (CounterSnapshot, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return CounterSnapshot{}, fmt.Errorf("gather metrics: %w", err)
	}
	var snap CounterSnapshot
	for _, family := range families {
		switch family.GetName() {
		case metricPages:
			snap.Pages = counterValue(family)
		case metricPageErrors:
			snap.PageErrors = counterValue(family)
		case metricDocumentWrites:
			snap.DocumentWrites = counterValue(family)
		case metricUpserts:
			snap.Upserts = counterValue(family)
		}
	}
	return snap, nil
}

func counterValue(family *dto.MetricFamily) float64 {
	metrics := family.GetMetric()
	if len(metrics) == 0 {
		return 0
	}
	return metrics[0].GetCounter().GetValue()
}
