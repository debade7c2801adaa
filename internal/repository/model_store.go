package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domrepo "QuantLens/internal/domain/repository"
	"QuantLens/pkg/cache"
)

// CacheModelStore persists serialized regime models through a cache.Service.
type CacheModelStore struct {
	cache  cache.Service
	prefix string
	ttl    time.Duration
}

var _ domrepo.ModelStore = (*CacheModelStore)(nil)

// NewCacheModelStore stores models under prefix:<SYMBOL>. A zero ttl keeps them forever.
func NewCacheModelStore(c cache.Service, prefix string, ttl time.Duration) *CacheModelStore {
	return &CacheModelStore{cache: c, prefix: prefix, ttl: ttl}
}

func (s *CacheModelStore) LoadModel(ctx context.Context, symbol string) ([]byte, bool, error) {
	var data []byte
	if err := s.cache.Get(ctx, s.key(symbol), &data); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load model %s: %w", symbol, err)
	}
	return data, true, nil
}

func (s *CacheModelStore) SaveModel(ctx context.Context, symbol string, data []byte) error {
	if err := s.cache.Set(ctx, s.key(symbol), data, s.ttl); err != nil {
		return fmt.Errorf("save model %s: %w", symbol, err)
	}
	return nil
}

func (s *CacheModelStore) key(symbol string) string {
	return cache.GenerateKey(s.prefix, strings.ToUpper(symbol))
}
