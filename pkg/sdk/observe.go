package qacache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/qacache/internal/domain/resolution"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	degraded    *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qacache",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qacache",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qacache",
			Subsystem: "sdk",
			Name:      "resolutions_total",
			Help:      "Answered questions by source tier.",
		}, []string{"source"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qacache",
			Subsystem: "sdk",
			Name:      "dependency_degraded_total",
			Help:      "Tier failures the pipeline stepped over.",
		}, []string{"tier"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.resolutions); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.degraded); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("qacache: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("qacache: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
// It also receives pipeline outcomes from the answer service.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(
	op string, start time.Time, err error,
) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(
			dur.Seconds(),
		)
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed",
				"op", op,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("operation completed",
				"op", op,
				"duration", dur,
			)
		}
	}
}

// Resolved implements the answer pipeline observer.
func (o *observer) Resolved(source resolution.Source, d time.Duration) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.resolutions.WithLabelValues(string(source)).Inc()
	}
	if o.logger != nil {
		o.logger.Debug("question resolved", "source", string(source), "duration", d)
	}
}

// Degraded implements the answer pipeline observer.
func (o *observer) Degraded(tier string) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.degraded.WithLabelValues(tier).Inc()
	}
	if o.logger != nil {
		o.logger.Warn("dependency degraded", "tier", tier)
	}
}
