package domain

import (
	"fmt"
	"time"
)

// Policy holds the tier thresholds and per-collaborator timeouts of the resolution pipeline.
type Policy struct {
	GoldThreshold    float64
	PriorThreshold   float64
	ContextThreshold float64
	CuratedTopK      int
	CacheTTL         time.Duration

	CacheTimeout     time.Duration
	StoreTimeout     time.Duration
	IndexTimeout     time.Duration
	EmbedTimeout     time.Duration
	GeneratorTimeout time.Duration
}

// DefaultPolicy returns the production thresholds: gold 0.85, prior-match 0.80, context 0.70.
func DefaultPolicy() Policy {
	return Policy{
		GoldThreshold:    0.85,
		PriorThreshold:   0.80,
		ContextThreshold: 0.70,
		CuratedTopK:      3,
		CacheTTL:         time.Hour,

		CacheTimeout:     250 * time.Millisecond,
		StoreTimeout:     2 * time.Second,
		IndexTimeout:     2 * time.Second,
		EmbedTimeout:     10 * time.Second,
		GeneratorTimeout: 60 * time.Second,
	}
}

// Validate checks threshold ordering (gold >= prior >= context) and positive limits.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"gold":    p.GoldThreshold,
		"prior":   p.PriorThreshold,
		"context": p.ContextThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold must be within [0,1], got %g", name, v)
		}
	}
	if p.GoldThreshold < p.PriorThreshold || p.PriorThreshold < p.ContextThreshold {
		return fmt.Errorf(
			"thresholds must satisfy gold >= prior >= context, got %g, %g, %g",
			p.GoldThreshold, p.PriorThreshold, p.ContextThreshold,
		)
	}
	if p.CuratedTopK <= 0 {
		return fmt.Errorf("curated top-k must be positive, got %d", p.CuratedTopK)
	}
	if p.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", p.CacheTTL)
	}
	return nil
}

// WithDefaults fills zero-valued fields from DefaultPolicy. An all-zero threshold
// triple counts as unset; any non-zero threshold keeps the caller's triple as is.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.GoldThreshold == 0 && p.PriorThreshold == 0 && p.ContextThreshold == 0 {
		p.GoldThreshold, p.PriorThreshold, p.ContextThreshold = d.GoldThreshold, d.PriorThreshold, d.ContextThreshold
	}
	if p.CuratedTopK <= 0 {
		p.CuratedTopK = d.CuratedTopK
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = d.CacheTTL
	}
	if p.CacheTimeout <= 0 {
		p.CacheTimeout = d.CacheTimeout
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = d.StoreTimeout
	}
	if p.IndexTimeout <= 0 {
		p.IndexTimeout = d.IndexTimeout
	}
	if p.EmbedTimeout <= 0 {
		p.EmbedTimeout = d.EmbedTimeout
	}
	if p.GeneratorTimeout <= 0 {
		p.GeneratorTimeout = d.GeneratorTimeout
	}
	return p
}
