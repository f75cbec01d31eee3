package memory

import (
	"context"
	"sync"

	"exam-arena-service/internal/domain"
)

// ProgressStore is an in-memory ledger.Store. Updates for one user are serialized by a
// per-user mutex; different users never contend.
type ProgressStore struct {
	mu    sync.Mutex
	users map[string]*userSlot
}

type userSlot struct {
	mu  sync.Mutex
	rec domain.ProgressionRecord
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{users: make(map[string]*userSlot)}
}

func (s *ProgressStore) slot(userID string) *userSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.users[userID]
	if !ok {
		slot = &userSlot{rec: domain.NewProgressionRecord(userID)}
		s.users[userID] = slot
	}
	return slot
}

func (s *ProgressStore) Get(_ context.Context, userID string) (domain.ProgressionRecord, error) {
	slot := s.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rec.Clone(), nil
}

func (s *ProgressStore) Update(ctx context.Context, userID string, fn func(*domain.ProgressionRecord) error) (domain.ProgressionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProgressionRecord{}, err
	}
	slot := s.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	next := slot.rec.Clone()
	if err := fn(&next); err != nil {
		return domain.ProgressionRecord{}, err
	}
	slot.rec = next
	return next.Clone(), nil
}
