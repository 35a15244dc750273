package qacache

import "github.com/kailas-cloud/qacache/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrRateLimited            = domain.ErrRateLimited
	ErrGenerationFailed       = domain.ErrGenerationFailed
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrNotFound               = domain.ErrNotFound
)
