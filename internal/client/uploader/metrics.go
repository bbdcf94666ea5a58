package uploader

import (
	"errors"
	"fmt"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for upload batches
type Observer interface {
	RecordFile(scope models.ScopeType, kind models.MediaKind, err error, bytes int64, duration time.Duration)
	RecordBatch(scope models.ScopeType, outcome Outcome)
	RecordDetachedFailure(task string)
	RecordCancellation(scope models.ScopeType, entries int)
}

// PrometheusObserver exports upload metrics to Prometheus
type PrometheusObserver struct {
	files            *prometheus.CounterVec
	fileDuration     *prometheus.HistogramVec
	uploadedBytes    prometheus.Counter
	batches          *prometheus.CounterVec
	detachedFailures *prometheus.CounterVec
	cancelledEntries *prometheus.CounterVec
}

// NewPrometheusObserver registers the upload metrics on reg
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "media_uploader"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed by upload batches, by outcome.",
		}, []string{"scope", "kind", "outcome"}),
		fileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time from negotiation to transport completion per file.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"scope", "kind"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes successfully sent to storage.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Upload batches by aggregate outcome.",
		}, []string{"scope", "outcome"}),
		detachedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detached_task_failures_total",
			Help:      "Failed finalize and upload-status calls.",
		}, []string{"task"}),
		cancelledEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancelled_entries_total",
			Help:      "Ledger entries failed by cancellation.",
		}, []string{"scope"}),
	}

	var err error
	if o.files, err = register(reg, o.files); err != nil {
		return nil, err
	}
	if o.fileDuration, err = register(reg, o.fileDuration); err != nil {
		return nil, err
	}
	if o.uploadedBytes, err = register(reg, o.uploadedBytes); err != nil {
		return nil, err
	}
	if o.batches, err = register(reg, o.batches); err != nil {
		return nil, err
	}
	if o.detachedFailures, err = register(reg, o.detachedFailures); err != nil {
		return nil, err
	}
	if o.cancelledEntries, err = register(reg, o.cancelledEntries); err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg, reusing an identical collector registered earlier
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register upload metric: %w", err)
	}
	return c, nil
}

// RecordFile counts one file outcome
func (o *PrometheusObserver) RecordFile(scope models.ScopeType, kind models.MediaKind, err error, bytes int64, duration time.Duration) {
	if o == nil {
		return
	}
	o.files.WithLabelValues(string(scope), string(kind), fileOutcome(err)).Inc()
	if err != nil {
		return
	}
	o.fileDuration.WithLabelValues(string(scope), string(kind)).Observe(duration.Seconds())
	o.uploadedBytes.Add(float64(bytes))
}

func (o *PrometheusObserver) RecordBatch(scope models.ScopeType, outcome Outcome) {
	if o == nil {
		return
	}
	o.batches.WithLabelValues(string(scope), string(outcome)).Inc()
}

func (o *PrometheusObserver) RecordDetachedFailure(task string) {
	if o == nil {
		return
	}
	o.detachedFailures.WithLabelValues(task).Inc()
}

func (o *PrometheusObserver) RecordCancellation(scope models.ScopeType, entries int) {
	if o == nil {
		return
	}
	o.cancelledEntries.WithLabelValues(string(scope)).Add(float64(entries))
}

func fileOutcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case IsCancelled(err):
		return "cancelled"
	default:
		return "failed"
	}
}

type nopObserver struct{}

func (nopObserver) RecordFile(models.ScopeType, models.MediaKind, error, int64, time.Duration) {}

func (nopObserver) RecordBatch(models.ScopeType, Outcome) {}

func (nopObserver) RecordDetachedFailure(string) {}

func (nopObserver) RecordCancellation(models.ScopeType, int) {}
