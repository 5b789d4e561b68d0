// Package cache memoizes recommendation results keyed by a hash of the patient input.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/domain"
)

const keyPrefix = "gdmt:recommendations:"

// Store is one cache tier.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.RecommendationOutput, bool, error)
	Set(ctx context.Context, key string, outputs []domain.RecommendationOutput) error
	Name() string
}

// Key hashes the canonical JSON encoding of input.
func Key(input domain.RecommendationInput) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode recommendation input: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s%x", keyPrefix, hash), nil
}

// Stats counts cache outcomes.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// CachedEngine wraps a RecommendationService with tiered memoization. Cache failures are
// logged and never fail a compute.
type CachedEngine struct {
	next   domain.RecommendationService
	tiers  []Store
	logger *logrus.Logger
	stats  *counters
}

// NewCachedEngine creates a cached engine consulting tiers in order.
func NewCachedEngine(next domain.RecommendationService, logger *logrus.Logger, tiers ...Store) *CachedEngine {
	return &CachedEngine{
		next:   next,
		tiers:  tiers,
		logger: logger,
		stats:  &counters{},
	}
}

// ComputeRecommendations returns the memoized result when present. Inputs without an
// evaluation date depend on the clock and bypass the cache.
func (c *CachedEngine) ComputeRecommendations(ctx context.Context, input domain.RecommendationInput) ([]domain.RecommendationOutput, error) {
	if input.Date.IsZero() || len(c.tiers) == 0 {
		return c.next.ComputeRecommendations(ctx, input)
	}

	key, err := Key(input)
	if err != nil {
		c.logger.WithError(err).Warn("Skipping recommendation cache")
		return c.next.ComputeRecommendations(ctx, input)
	}

	for i, tier := range c.tiers {
		outputs, found, err := tier.Get(ctx, key)
		if err != nil {
			c.stats.errors.Add(1)
			c.logger.WithError(err).WithField("tier", tier.Name()).Warn("Cache lookup failed")
			continue
		}
		if !found {
			continue
		}

		c.stats.hits.Add(1)
		c.logger.WithFields(logrus.Fields{"tier": tier.Name(), "key": key}).Debug("Recommendation cache hit")
		c.fill(ctx, key, outputs, c.tiers[:i])
		return outputs, nil
	}

	c.stats.misses.Add(1)
	outputs, err := c.next.ComputeRecommendations(ctx, input)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, outputs, c.tiers)
	return outputs, nil
}

func (c *CachedEngine) fill(ctx context.Context, key string, outputs []domain.RecommendationOutput, tiers []Store) {
	for _, tier := range tiers {
		if err := tier.Set(ctx, key, outputs); err != nil {
			c.stats.errors.Add(1)
			c.logger.WithError(err).WithField("tier", tier.Name()).Warn("Cache store failed")
		}
	}
}

// Stats returns a snapshot of the counters.
func (c *CachedEngine) Stats() Stats {
	return Stats{
		Hits:   c.stats.hits.Load(),
		Misses: c.stats.misses.Load(),
		Errors: c.stats.errors.Load(),
	}
}

// cachedResult is the serialized form kept by remote tiers.
type cachedResult struct {
	Outputs   []domain.RecommendationOutput `json:"outputs"`
	CachedAt  time.Time                     `json:"cached_at"`
	ExpiresAt time.Time                     `json:"expires_at"`
}
