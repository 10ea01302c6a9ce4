// Package metrics holds the Prometheus collectors shared by the filter
// compiler, the update preparer and the store.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// FiltersCompiled counts tag-filter compilations by dialect and outcome.
	FiltersCompiled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealkv_filters_compiled_total",
			Help: "Total number of tag filters compiled to SQL",
		},
		[]string{"dialect", "status"},
	)
	// UpdatesPrepared counts entries passed through update preparation.
	UpdatesPrepared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealkv_updates_prepared_total",
			Help: "Total number of entries prepared for update",
		},
		[]string{"status"},
	)
	// StoreOperations counts store operations (fetch, scan, insert, etc.).
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealkv_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)
	// StoreOperationDuration is the latency of store operations.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sealkv_store_operation_duration_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// WriteText writes every sealkv_* family from the default registry in the
// Prometheus text format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "sealkv_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
