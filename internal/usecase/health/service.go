package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing; answers are still served.
	Degraded Status = "degraded"
	// Unhealthy indicates the durable store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase  = "database"
	ComponentFastCache = "fast_cache"
	ComponentCurated   = "curated_index"
	ComponentEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	db       Pinger
	optional []probe
	timeout  time.Duration
}

// Option configures optional components.
type Option func(*Service)

// WithFastCache adds the fast cache to the report. A nil pinger is ignored.
func WithFastCache(p Pinger) Option {
	return func(s *Service) {
		if p != nil {
			s.optional = append(s.optional, probe{ComponentFastCache, p.Ping})
		}
	}
}

// WithCuratedIndex adds the curated corpus to the report.
func WithCuratedIndex(p Pinger) Option {
	return func(s *Service) {
		if p != nil {
			s.optional = append(s.optional, probe{ComponentCurated, p.Ping})
		}
	}
}

// WithEmbedding adds the embedding provider to the report.
func WithEmbedding(c EmbeddingChecker) Option {
	return func(s *Service) {
		if c != nil {
			s.optional = append(s.optional, probe{ComponentEmbedding, c.HealthCheck})
		}
	}
}

// WithTimeout overrides DefaultCheckTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service around the durable store.
func New(db Pinger, opts ...Option) *Service {
	s := &Service{db: db, timeout: DefaultCheckTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.optional)+1)

	status := Healthy
	if s.run(ctx, s.db.Ping) != CheckOK {
		status = Unhealthy
	}
	checks[ComponentDatabase] = statusResult(status)

	for _, p := range s.optional {
		res := s.run(ctx, p.fn)
		checks[p.name] = res
		if res == CheckError && status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}

func statusResult(st Status) CheckResult {
	if st == Unhealthy {
		return CheckError
	}
	return CheckOK
}
