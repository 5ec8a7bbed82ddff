package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PagesScrapedTotal prometheus.Counter
	ItemsAddedTotal   *prometheus.CounterVec
	DuplicatesTotal   prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	AIBatchesTotal    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		PagesScrapedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalogbot_pages_scraped_total",
			Help: "The total number of listing pages scraped",
		}),
		ItemsAddedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogbot_items_added_total",
			Help: "The total number of items committed to the catalog",
		}, []string{"type"}), // 'game' or 'software'
		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalogbot_duplicates_total",
			Help: "The total number of items skipped as duplicates",
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogbot_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'page_fetch', 'detail_fetch', 'ai_batch', 'db_insert'
		AIBatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalogbot_ai_batches_total",
			Help: "The total number of AI extraction batches sent",
		}),
	}
}

func (m *Metrics) IncPagesScraped() {
	m.PagesScrapedTotal.Inc()
}

func (m *Metrics) IncItemsAdded(itemType string) {
	m.ItemsAddedTotal.WithLabelValues(itemType).Inc()
}

func (m *Metrics) IncDuplicates() {
	m.DuplicatesTotal.Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncAIBatches() {
	m.AIBatchesTotal.Inc()
}
