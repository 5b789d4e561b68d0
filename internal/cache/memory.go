package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gdmt-engine/internal/domain"
)

type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

// MemoryStore is a size-bounded in-process tier with per-entry expiry.
type MemoryStore struct {
	lru *expirable.LRU[string, []domain.RecommendationOutput]
}

// NewMemoryStore creates a memory tier holding at most size entries for ttl each.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru: expirable.NewLRU[string, []domain.RecommendationOutput](size, nil, ttl),
	}
}

// Get returns a copy of the cached outputs.
func (m *MemoryStore) Get(_ context.Context, key string) ([]domain.RecommendationOutput, bool, error) {
	outputs, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]domain.RecommendationOutput{}, outputs...), true, nil
}

// Set stores a copy of outputs.
func (m *MemoryStore) Set(_ context.Context, key string, outputs []domain.RecommendationOutput) error {
	m.lru.Add(key, append([]domain.RecommendationOutput{}, outputs...))
	return nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

// Name identifies the tier in logs.
func (m *MemoryStore) Name() string {
	return "memory"
}
