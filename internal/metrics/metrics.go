// Package metrics exposes prometheus instrumentation for the
// orchestration layer: command executions, protocol reconnects, and
// deployment pipeline stages.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	executesTotal *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	stageTotal    *prometheus.CounterVec
)

func initMetrics() {
	initOnce.Do(func() {
		executesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "registry",
			Name:      "executes_total",
			Help:      "Count of commands routed through the service registry",
		}, []string{"service", "tool", "status"})

		reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "protocol",
			Name:      "reconnects_total",
			Help:      "Count of protocol client reconnection outcomes",
		}, []string{"outcome"})

		stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "deploy",
			Name:      "pipeline_stages_total",
			Help:      "Count of deployment pipeline stage outcomes",
		}, []string{"provider", "stage", "status"})

		for _, collector := range []prometheus.Collector{executesTotal, reconnects, stageTotal} {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					if v, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
						switch collector {
						case executesTotal:
							executesTotal = v
						case reconnects:
							reconnects = v
						case stageTotal:
							stageTotal = v
						}
					}
				}
			}
		}
	})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordExecute counts one registry execution.
func RecordExecute(service, tool string, success bool) {
	initMetrics()
	executesTotal.WithLabelValues(service, tool, statusLabel(success)).Inc()
}

// RecordReconnect counts one reconnection outcome ("attempt",
// "success", or "exhausted").
func RecordReconnect(outcome string) {
	initMetrics()
	reconnects.WithLabelValues(outcome).Inc()
}

// RecordStage counts one deployment pipeline stage outcome. The status
// label is free-form ("ok", "error") so the pipeline can refine it
// without a signature change.
func RecordStage(provider, stage, status string) {
	initMetrics()
	stageTotal.WithLabelValues(provider, stage, status).Inc()
}

// Handler returns the prometheus scrape handler mounted by the serve
// command.
func Handler() http.Handler {
	initMetrics()
	return promhttp.Handler()
}
