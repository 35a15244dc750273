package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
	"github.com/kailas-cloud/qacache/internal/logger"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
)

// MaxRequestBodyBytes caps the ask request body.
const MaxRequestBodyBytes = 64 << 10

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidInput     = "invalid_input"
	CodeRateLimited      = "rate_limited"
	CodeGenerationFailed = "generation_failed"
	CodeInternalError    = "internal_error"
)

// Resolver answers questions.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolution.Resolution, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// AskRequest is the POST /api/v1/ask body.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the POST /api/v1/ask success body.
type AskResponse struct {
	Answer     string   `json:"answer"`
	Source     string   `json:"source"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the question-answering HTTP API.
type Server struct {
	resolver      Resolver
	health        HealthChecker
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. A nil gatherer serves the default registry.
func NewServer(resolver Resolver, health HealthChecker, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		resolver: resolver,
		health:   health,
		gatherer: gatherer,
		logger:   logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput),
			sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
			sentinelHandler(domain.ErrGenerationFailed, http.StatusInternalServerError, CodeGenerationFailed),
		},
	}
}

// Ask handles POST /api/v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		msg := "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "Request body too large"
		} else if errors.Is(err, io.EOF) {
			msg = "Request body is empty"
		}
		writeError(w, http.StatusBadRequest, CodeInvalidInput, msg)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:     res.Answer(),
		Source:     string(res.Source()),
		Similarity: res.Similarity(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client message is the sentinel text, never the wrapped chain.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
