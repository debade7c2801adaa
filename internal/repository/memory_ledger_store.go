package repository

import (
	"context"
	"sync"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
)

// MemoryLedgerStore keeps the ledger in process memory; it backs ledger.backend "none".
type MemoryLedgerStore struct {
	mu      sync.Mutex
	records []models.PerformanceRecord
}

var _ domrepo.LedgerStore = (*MemoryLedgerStore)(nil)

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{}
}

func (s *MemoryLedgerStore) Backend() string { return "none" }

func (s *MemoryLedgerStore) Load(context.Context) ([]models.PerformanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PerformanceRecord(nil), s.records...), nil
}

func (s *MemoryLedgerStore) Save(_ context.Context, records []models.PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]models.PerformanceRecord(nil), records...)
	return nil
}

func (s *MemoryLedgerStore) Append(_ context.Context, rec models.PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}
