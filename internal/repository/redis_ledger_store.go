package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	applogger "QuantLens/pkg/logger"
)

// RedisLedgerStore keeps the performance ledger as a Redis list of JSON records, oldest first.
type RedisLedgerStore struct {
	client     *redis.Client
	key        string
	maxRecords int
	l          *applogger.Logger
}

var _ domrepo.LedgerStore = (*RedisLedgerStore)(nil)

// NewRedisLedgerStore creates a store under key. maxRecords > 0 trims the list to the newest records.
func NewRedisLedgerStore(client *redis.Client, key string, maxRecords int, l *applogger.Logger) *RedisLedgerStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisLedgerStore{client: client, key: key, maxRecords: maxRecords, l: l}
}

func (s *RedisLedgerStore) Backend() string { return "redis" }

// Load returns stored records; entries that fail to decode are skipped.
func (s *RedisLedgerStore) Load(ctx context.Context) ([]models.PerformanceRecord, error) {
	vals, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ledger load: %w", err)
	}
	out := make([]models.PerformanceRecord, 0, len(vals))
	for i, v := range vals {
		var rec models.PerformanceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.l.Warn("skipping undecodable ledger entry", applogger.Int("index", i), applogger.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Save replaces the stored list atomically.
func (s *RedisLedgerStore) Save(ctx context.Context, records []models.PerformanceRecord) error {
	vals := make([]interface{}, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("redis ledger encode %s: %w", rec.ID, err)
		}
		vals = append(vals, b)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(vals) > 0 {
			pipe.RPush(ctx, s.key, vals...)
			s.trim(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ledger save: %w", err)
	}
	return nil
}

// Append adds one record to the tail of the list.
func (s *RedisLedgerStore) Append(ctx context.Context, rec models.PerformanceRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis ledger encode %s: %w", rec.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, b)
		s.trim(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ledger append: %w", err)
	}
	return nil
}

func (s *RedisLedgerStore) trim(ctx context.Context, pipe redis.Pipeliner) {
	if s.maxRecords > 0 {
		pipe.LTrim(ctx, s.key, int64(-s.maxRecords), -1)
	}
}
