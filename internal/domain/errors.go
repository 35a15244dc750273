package domain

import "errors"

var (
	// ErrInvalidInput signals an empty or malformed question.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals that the answer generator is over capacity.
	ErrRateLimited = errors.New("rate limited")
	// ErrGenerationFailed signals any answer generator failure other than capacity.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrDependencyDegraded marks a cache, store or index failure the pipeline stepped over.
	// It is never returned to callers of the pipeline.
	ErrDependencyDegraded = errors.New("dependency degraded")
	// ErrNotFound signals a missing question, answer or key.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
