package repository

import (
	"context"
	"sync"
	"time"

	"hazard-reporting-system/services/hazard-service/models"
)

// MemoryHazardStore keeps hazards in process memory. Used by tests and as
// the zero-infrastructure mode when no Mongo endpoint is configured.
type MemoryHazardStore struct {
	mu      sync.RWMutex
	hazards map[int64]models.Hazard
	order   []int64
}

func NewMemoryHazardStore() *MemoryHazardStore {
	return &MemoryHazardStore{hazards: make(map[int64]models.Hazard)}
}

func (s *MemoryHazardStore) Insert(ctx context.Context, hazard *models.Hazard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hazards[hazard.ID]; ok {
		return ErrDuplicateID
	}
	hazard.Version = 1
	s.hazards[hazard.ID] = cloneHazard(hazard)
	s.order = append(s.order, hazard.ID)
	return nil
}

func (s *MemoryHazardStore) FindByID(ctx context.Context, id int64) (*models.Hazard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hazards[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneHazard(&h)
	return &out, nil
}

func (s *MemoryHazardStore) Update(ctx context.Context, hazard *models.Hazard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.hazards[hazard.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != hazard.Version {
		return ErrVersionConflict
	}
	hazard.Version++
	s.hazards[hazard.ID] = cloneHazard(hazard)
	return nil
}

func (s *MemoryHazardStore) ListByValidation(ctx context.Context, validationStatus string) ([]models.Hazard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Hazard, 0, len(s.order))
	for _, id := range s.order {
		h := s.hazards[id]
		if h.ValidationStatus == validationStatus {
			out = append(out, cloneHazard(&h))
		}
	}
	return out, nil
}

func cloneHazard(h *models.Hazard) models.Hazard {
	out := *h
	out.VotedBy = append([]string(nil), h.VotedBy...)
	out.Solutions = append([]models.Solution(nil), h.Solutions...)
	return out
}

// MemoryUserLedger is the in-memory UserLedger counterpart. Insertion order
// is preserved so leaderboard ties keep a deterministic prior order.
type MemoryUserLedger struct {
	mu    sync.RWMutex
	users map[string]models.UserRecord
	order []string
}

func NewMemoryUserLedger() *MemoryUserLedger {
	return &MemoryUserLedger{users: make(map[string]models.UserRecord)}
}

func (l *MemoryUserLedger) Ensure(ctx context.Context, id, role string) (*models.UserRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.users[id]; ok {
		out := existing
		return &out, nil
	}

	now := time.Now().UTC()
	record := models.UserRecord{
		ID:        id,
		Role:      role,
		Points:    0,
		Level:     1,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.users[id] = record
	l.order = append(l.order, id)
	out := record
	return &out, nil
}

func (l *MemoryUserLedger) Get(ctx context.Context, id string) (*models.UserRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := record
	return &out, nil
}

func (l *MemoryUserLedger) Update(ctx context.Context, record *models.UserRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.users[record.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != record.Version {
		return ErrVersionConflict
	}
	record.Version++
	record.UpdatedAt = time.Now().UTC()
	l.users[record.ID] = *record
	return nil
}

func (l *MemoryUserLedger) All(ctx context.Context) ([]models.UserRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.UserRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.users[id])
	}
	return out, nil
}
