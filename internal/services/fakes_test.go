package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

// fakeRepo is a map-backed Repository for entities without a memory store.
type fakeRepo[T any, F any] struct {
	mu   sync.Mutex
	rows map[string]T
	id   func(*T) *string
}

func newFakeRepo[T any, F any](id func(*T) *string) *fakeRepo[T, F] {
	return &fakeRepo[T, F]{rows: make(map[string]T), id: id}
}

func (r *fakeRepo[T, F]) GetByID(ctx context.Context, id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	return row, nil
}

func (r *fakeRepo[T, F]) List(ctx context.Context, filter F, page types.Page) ([]T, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.rows))
	for k := range r.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.rows[k])
	}
	return out, len(out), nil
}

func (r *fakeRepo[T, F]) Create(ctx context.Context, row T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[*r.id(&row)] = row
	return row, nil
}

func (r *fakeRepo[T, F]) Update(ctx context.Context, row T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := *r.id(&row)
	if _, ok := r.rows[id]; !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	r.rows[id] = row
	return row, nil
}

func (r *fakeRepo[T, F]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

type fakeNotifications struct {
	*fakeRepo[types.Notification, types.NotificationFilter]
}

func (r fakeNotifications) MarkSent(ctx context.Context, id string, now time.Time) (types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.Sent {
		return types.Notification{}, store.ErrNotFound
	}
	n.Sent = true
	n.SentAt = &now
	r.rows[id] = n
	return n, nil
}

type fakeDiary struct {
	*fakeRepo[types.DiaryEntry, types.DiaryFilter]
}

func (r fakeDiary) Create(ctx context.Context, e types.DiaryEntry) (types.DiaryEntry, error) {
	for _, kind := range types.DiaryItemKinds {
		if e.Items(kind) == nil {
			e.SetItems(kind, []types.DiaryItem{})
		}
	}
	return r.fakeRepo.Create(ctx, e)
}

// Update keeps the item lists the caller left nil.
func (r fakeDiary) Update(ctx context.Context, e types.DiaryEntry) (types.DiaryEntry, error) {
	existing, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return types.DiaryEntry{}, err
	}
	for _, kind := range types.DiaryItemKinds {
		if e.Items(kind) == nil {
			e.SetItems(kind, existing.Items(kind))
		}
	}
	return r.fakeRepo.Update(ctx, e)
}

func (r fakeDiary) AddItem(ctx context.Context, kind types.DiaryItemKind, item types.DiaryItem) (types.DiaryItem, error) {
	e, err := r.GetByID(ctx, item.EntryID)
	if err != nil {
		return types.DiaryItem{}, err
	}
	for _, existing := range e.Items(kind) {
		if existing.ItemID == item.ItemID {
			return types.DiaryItem{}, &store.DuplicateError{Table: "diary_entry_" + string(kind), Field: "entry_item"}
		}
	}
	e.SetItems(kind, append(e.Items(kind), item))
	_, err = r.fakeRepo.Update(ctx, e)
	return item, err
}

func (r fakeDiary) RemoveItem(ctx context.Context, kind types.DiaryItemKind, entryID, itemID string) error {
	e, err := r.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	items := e.Items(kind)
	for i, existing := range items {
		if existing.ItemID == itemID {
			e.SetItems(kind, append(items[:i:i], items[i+1:]...))
			_, err = r.fakeRepo.Update(ctx, e)
			return err
		}
	}
	return store.ErrNotFound
}

// failingSink rejects every audit write.
type failingSink struct{}

func (failingSink) Write(ctx context.Context, record types.AuditRecord) error {
	return errors.New("audit store unavailable")
}
