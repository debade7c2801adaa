package usecase

import (
	"context"
	"sync"
	"time"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	"QuantLens/internal/services/performance"
	"QuantLens/internal/services/regime"
	applogger "QuantLens/pkg/logger"
)

// Session owns the mutable engine state shared by HTTP handlers, the outcome consumer and queue jobs.
type Session struct {
	mu       sync.Mutex
	model    *regime.Model
	tracker  *performance.Tracker
	previous *models.RegimeLabel

	store domrepo.LedgerStore
	l     *applogger.Logger
}

// OpenSession restores the ledger from store. A failed load starts an empty ledger.
func OpenSession(ctx context.Context, store domrepo.LedgerStore, capacity int, l *applogger.Logger) *Session {
	if l == nil {
		l = applogger.Nop()
	}
	return &Session{
		tracker: performance.LoadTracker(ctx, store, l, capacity),
		store:   store,
		l:       l,
	}
}

// NewSession wraps an existing tracker; store may be nil.
func NewSession(tracker *performance.Tracker, store domrepo.LedgerStore, l *applogger.Logger) *Session {
	if tracker == nil {
		tracker = performance.NewTracker()
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Session{tracker: tracker, store: store, l: l}
}

func (s *Session) Model() *regime.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Session) SetModel(m *regime.Model) {
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
}

// PreviousRegime is the regime observed by the last scan cycle, nil before the first.
func (s *Session) PreviousRegime() *models.RegimeLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previous == nil {
		return nil
	}
	r := *s.previous
	return &r
}

// AdvanceRegime records current as the latest regime and returns the one it replaces.
func (s *Session) AdvanceRegime(current models.RegimeLabel) *models.RegimeLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.previous
	s.previous = &current
	return prev
}

// AddRecord appends rec to the ledger and persists it. A store failure leaves the
// in-memory ledger updated and is returned to the caller.
func (s *Session) AddRecord(ctx context.Context, rec models.PerformanceRecord) (int, error) {
	s.mu.Lock()
	s.tracker.AddRecord(rec)
	n := s.tracker.Len()
	s.mu.Unlock()

	if s.store == nil {
		return n, nil
	}
	return n, s.store.Append(ctx, rec)
}

func (s *Session) AdjustScores(assets []models.Asset, strategy string, label models.RegimeLabel, ts time.Time, cfg performance.AdaptiveConfig) []models.AdjustedAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return performance.AdjustScoresBatch(assets, strategy, label, ts, s.tracker, cfg)
}

func (s *Session) PerformanceByRegime(strategy string) map[models.RegimeLabel]models.RegimeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.AnalyzePerformanceByRegime(strategy)
}

func (s *Session) LedgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Len()
}

// Flush writes the whole ledger through the store.
func (s *Session) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	snapshot := performance.NewTrackerWithCapacity(s.tracker.Capacity())
	snapshot.Restore(s.tracker.Records())
	s.mu.Unlock()

	if err := performance.SaveTracker(ctx, s.store, snapshot); err != nil {
		s.l.Error("flush performance ledger failed",
			applogger.String("backend", s.store.Backend()),
			applogger.Error(err),
		)
		return err
	}
	return nil
}
