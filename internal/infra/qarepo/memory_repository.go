package qarepo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// MemoryRepository is an in-memory qa.RecordRepository used for tests/dev
// and as a fallback when Postgres is not configured.
type MemoryRepository struct {
	mu           sync.RWMutex
	records      map[uuid.UUID]qa.Record
	byNormalized map[string]uuid.UUID
}

// NewMemoryRepository constructs a repository backed by process memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:      make(map[uuid.UUID]qa.Record),
		byNormalized: make(map[string]uuid.UUID),
	}
}

// FindByNormalized implements qa.RecordRepository.
func (r *MemoryRepository) FindByNormalized(_ context.Context, normalized string) (qa.Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNormalized[normalized]
	if !ok {
		return qa.Record{}, false, nil
	}
	return r.records[id].Clone(), true, nil
}

// Get implements qa.RecordRepository.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (qa.Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return qa.Record{}, false, nil
	}
	return record.Clone(), true, nil
}

// List implements qa.RecordRepository.
func (r *MemoryRepository) List(_ context.Context) ([]qa.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]qa.Record, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

// Save implements qa.RecordRepository. Insert and replace share one path;
// the whole record swaps atomically under the lock.
func (r *MemoryRepository) Save(_ context.Context, record qa.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record.Clone()
	r.byNormalized[record.Normalized] = record.ID
	return nil
}

// Delete implements qa.RecordRepository.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return false, nil
	}
	delete(r.records, id)
	delete(r.byNormalized, record.Normalized)
	return true, nil
}

var _ qa.RecordRepository = (*MemoryRepository)(nil)
