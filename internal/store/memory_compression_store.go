package store

import (
	"context"
	"sync"

	"github.com/dunamismax/pixelpress/internal/domain"
)

// MemoryCompressionStore is a bounded in-process log; the oldest entries are
// dropped once capacity is reached.
type MemoryCompressionStore struct {
	mu       sync.RWMutex
	entries  []domain.CompressionLog
	capacity int
}

func NewMemoryCompressionStore(capacity int) *MemoryCompressionStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCompressionStore{capacity: capacity}
}

func (s *MemoryCompressionStore) Record(_ context.Context, entry domain.CompressionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append([]domain.CompressionLog(nil), s.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryCompressionStore) Recent(_ context.Context, limit int) ([]domain.CompressionLog, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.entries))
	out := make([]domain.CompressionLog, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
