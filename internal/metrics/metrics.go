// Package metrics records ingest run metrics in a private Prometheus
// registry and writes them in text format for the node exporter's textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ebcovid/caseledger/internal/diag"
)

// Recorder counts case outcomes and diagnostics of a run. It implements
// diag.Sink and the pipeline's outcome recorder.
type Recorder struct {
	reg         *prometheus.Registry
	cases       *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	lastRun     *prometheus.GaugeVec
	duration    prometheus.Gauge
	aliases     prometheus.Gauge
}

// New creates a Recorder whose metric names start with namespace.
func New(namespace string) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Extracted cases by outcome.",
		}, []string{"outcome"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Non-fatal findings by kind.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished, by status.",
		}, []string{"status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		aliases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aliases_synced",
			Help:      "Aliases newly stored by the last run.",
		}),
	}
	r.reg.MustRegister(r.cases, r.diagnostics, r.lastRun, r.duration, r.aliases)

	// Known labels are exported as zero from the start.
	for _, k := range []diag.Kind{diag.KindExtractionMiss, diag.KindDateMalformed, diag.KindStructural, diag.KindPersistFailure} {
		r.diagnostics.WithLabelValues(k.String())
	}
	return r
}

// Report counts d by kind.
func (r *Recorder) Report(d diag.Diagnostic) {
	r.diagnostics.WithLabelValues(d.Kind.String()).Inc()
}

// RecordCase counts one case outcome.
func (r *Recorder) RecordCase(outcome string) {
	r.cases.WithLabelValues(outcome).Inc()
}

// ObserveRun records the end of a run.
func (r *Recorder) ObserveRun(finished time.Time, took time.Duration, aliasesSynced int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.lastRun.WithLabelValues(status).Set(float64(finished.Unix()))
	r.duration.Set(took.Seconds())
	r.aliases.Set(float64(aliasesSynced))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
