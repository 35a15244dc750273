// Package fastcache maps question fingerprints to answer text in a TTL key-value store.
package fastcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/domain/question"
)

const keyPrefix = "qa:"

// store is the consumer interface for the fast cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo is the fingerprint-keyed answer cache.
type Repo struct {
	store store
}

// New creates a fast cache over a KV store.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Key returns the cache key for a fingerprint: "qa:" followed by 64 hex chars.
func Key(fingerprint string) string {
	return keyPrefix + fingerprint
}

// Get returns the cached answer. A miss yields domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, fingerprint string) (string, error) {
	if len(fingerprint) != question.FingerprintLen {
		return "", fmt.Errorf("fingerprint %q: %w", fingerprint, domain.ErrInvalidInput)
	}
	data, err := r.store.Get(ctx, Key(fingerprint))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get cached answer: %w", err)
	}
	if len(data) == 0 {
		return "", domain.ErrNotFound
	}
	return string(data), nil
}

// Set stores answer under fingerprint for ttl.
func (r *Repo) Set(ctx context.Context, fingerprint, answer string, ttl time.Duration) error {
	if len(fingerprint) != question.FingerprintLen {
		return fmt.Errorf("fingerprint %q: %w", fingerprint, domain.ErrInvalidInput)
	}
	if err := r.store.SetWithTTL(ctx, Key(fingerprint), []byte(answer), ttl); err != nil {
		return fmt.Errorf("set cached answer: %w", err)
	}
	return nil
}
