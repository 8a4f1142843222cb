// Package metrics defines the Prometheus counters and histograms the
// indexer exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_indexer_files_indexed_total",
		Help: "Total number of DICOM files successfully parsed and committed to the catalog.",
	})

	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_indexer_parse_errors_total",
		Help: "Total number of files skipped due to a parse failure.",
	})

	FilesSkippedUnchanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_indexer_files_skipped_unchanged_total",
		Help: "Total number of files skipped because their recorded modification time was not older than the file's current mtime.",
	})

	BatchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dicom_indexer_batch_insert_duration_seconds",
		Help:    "Duration of one catalog-writer transaction per drained batch.",
		Buckets: prometheus.DefBuckets,
	})

	DisplayFieldsUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dicom_indexer_display_fields_update_duration_seconds",
		Help:    "Duration of the displayed-field rule pipeline update per batch.",
		Buckets: prometheus.DefBuckets,
	})
)
