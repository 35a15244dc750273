package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/qacache/internal/domain/resolution"
)

const namespace = "qacache"

// Pipeline Prometheus metrics.
var (
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolved questions by answering tier",
		},
		[]string{"source"},
	)

	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "End-to-end resolution latency by answering tier",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	DependencyDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_degraded_total",
			Help:      "Tier failures the pipeline stepped over",
		},
		[]string{"tier"},
	)

	GeneratorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_requests_total",
			Help:      "Answer generator calls by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	GeneratorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generator_request_duration_seconds",
			Help:      "Answer generator latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
)

var registerOnce sync.Once

// Register registers HTTP, pipeline, generator and embedding metrics on reg.
// Safe to call more than once; only the first call registers.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		cs := append(embeddingCollectors(),
			ResolutionsTotal,
			ResolutionDuration,
			DependencyDegradedTotal,
			GeneratorRequestsTotal,
			GeneratorRequestDuration,
			httpRequestDuration,
			httpRequestsTotal,
		)
		for _, c := range cs {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

// Pipeline records resolution outcomes on the package-level collectors.
type Pipeline struct{}

// Resolved counts one answered question and its latency.
func (Pipeline) Resolved(source resolution.Source, d time.Duration) {
	ResolutionsTotal.WithLabelValues(string(source)).Inc()
	ResolutionDuration.WithLabelValues(string(source)).Observe(d.Seconds())
}

// Degraded counts one failed tier the pipeline ignored.
func (Pipeline) Degraded(tier string) {
	DependencyDegradedTotal.WithLabelValues(tier).Inc()
}
