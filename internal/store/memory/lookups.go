package memory

import (
	"context"
	"sync"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type LookupRepository struct {
	kind types.LookupKind
	refs func(id string) int

	mu   sync.RWMutex
	byID map[string]types.Lookup
}

func NewLookupRepository(kind types.LookupKind) *LookupRepository {
	return &LookupRepository{kind: kind, byID: make(map[string]types.Lookup)}
}

func (r *LookupRepository) Kind() types.LookupKind {
	return r.kind
}

// SetReferenceCounter overrides how references to a row are counted.
func (r *LookupRepository) SetReferenceCounter(fn func(id string) int) {
	r.refs = fn
}

func (r *LookupRepository) GetByID(ctx context.Context, id string) (types.Lookup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.byID[id]
	if !ok {
		return types.Lookup{}, store.ErrNotFound
	}
	return row, nil
}

func (r *LookupRepository) GetByCode(ctx context.Context, code string) (types.Lookup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.byID {
		if row.Code == code {
			return row, nil
		}
	}
	return types.Lookup{}, store.ErrNotFound
}

func (r *LookupRepository) List(ctx context.Context, filter types.LookupFilter, page types.Page) ([]types.Lookup, int, error) {
	r.mu.RLock()
	out := make([]types.Lookup, 0)
	for _, row := range r.byID {
		if filter.Code != "" && row.Code != filter.Code {
			continue
		}
		if filter.Active != nil && row.Active != *filter.Active {
			continue
		}
		out = append(out, row)
	}
	r.mu.RUnlock()

	items, total := paginate(out, page, func(a, b types.Lookup) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return items, total, nil
}

func (r *LookupRepository) Create(ctx context.Context, row types.Lookup) (types.Lookup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCode(row); err != nil {
		return types.Lookup{}, err
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	r.byID[row.ID] = row
	return row, nil
}

func (r *LookupRepository) Update(ctx context.Context, row types.Lookup) (types.Lookup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[row.ID]
	if !ok {
		return types.Lookup{}, store.ErrNotFound
	}
	if err := r.checkCode(row); err != nil {
		return types.Lookup{}, err
	}
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = time.Now().UTC()
	r.byID[row.ID] = row
	return row, nil
}

func (r *LookupRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *LookupRepository) CountReferences(ctx context.Context, id string) (int, error) {
	if r.refs == nil {
		return 0, nil
	}
	return r.refs(id), nil
}

func (r *LookupRepository) checkCode(row types.Lookup) error {
	for _, existing := range r.byID {
		if existing.ID != row.ID && existing.Code == row.Code {
			return &store.DuplicateError{Table: string(r.kind), Field: "code"}
		}
	}
	return nil
}
