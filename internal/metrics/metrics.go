package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vlmprep/internal/services"
)

const namespace = "vlmprep"

// Recorder owns the stage metrics of one process.
type Recorder struct {
	registry       *prometheus.Registry
	itemsProcessed *prometheus.CounterVec
	itemsSkipped   *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	lastSuccess    *prometheus.GaugeVec
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Items written by a stage (frames, images or captions).",
		}, []string{"stage"}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Items a stage skipped after a per-item failure.",
		}, []string{"stage"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Stage runs by outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a stage run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage run.",
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.itemsProcessed, r.itemsSkipped, r.runsTotal, r.stageDuration, r.lastSuccess)
	return r
}

// Observation is the outcome of one stage run.
type Observation struct {
	Stage     string
	Outcome   string
	Processed int
	Skipped   int
	Duration  time.Duration
	Finished  time.Time
}

// Observe records a finished stage run. A nil Recorder is a no-op.
func (r *Recorder) Observe(o Observation) {
	if r == nil {
		return
	}
	r.itemsProcessed.WithLabelValues(o.Stage).Add(float64(o.Processed))
	r.itemsSkipped.WithLabelValues(o.Stage).Add(float64(o.Skipped))
	r.runsTotal.WithLabelValues(o.Stage, o.Outcome).Inc()
	r.stageDuration.WithLabelValues(o.Stage).Observe(o.Duration.Seconds())
	if o.Outcome == services.OutcomeSucceeded {
		finished := o.Finished
		if finished.IsZero() {
			finished = time.Now()
		}
		r.lastSuccess.WithLabelValues(o.Stage).Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes the registry in Prometheus text format. The write is
// atomic so a collector never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
