package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
)

// MemoryStore keeps audit records in process. Used by the memory backend and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []types.AuditRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Write(ctx context.Context, record types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything written so far, oldest first.
func (s *MemoryStore) Records() []types.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.AuditRecord(nil), s.records...)
}

func (s *MemoryStore) Query(ctx context.Context, filter types.AuditFilter, page types.Page) ([]types.AuditRecord, int, error) {
	s.mu.RLock()
	out := make([]types.AuditRecord, 0)
	for _, r := range s.records {
		if filter.Entity != "" && r.Entity != filter.Entity {
			continue
		}
		if filter.EntityID != "" && r.EntityID != filter.EntityID {
			continue
		}
		if filter.ActorID != "" && r.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && r.Action != filter.Action {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	page = page.Normalize()
	total := len(out)
	start := page.Offset()
	if start >= total {
		return []types.AuditRecord{}, total, nil
	}
	return out[start:min(start+page.Limit, total)], total, nil
}

func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}
