package services

import (
	"context"
	"fmt"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/google/uuid"
)

type DiaryRepository interface {
	Repository[types.DiaryEntry, types.DiaryFilter]
	AddItem(ctx context.Context, kind types.DiaryItemKind, item types.DiaryItem) (types.DiaryItem, error)
	RemoveItem(ctx context.Context, kind types.DiaryItemKind, entryID, itemID string) error
}

// DiaryService manages diary entries and the emotions, sensations, feelings
// and symptoms attached to them.
type DiaryService struct {
	repo    DiaryRepository
	crud    crud[types.DiaryEntry, types.DiaryFilter]
	lookups map[types.DiaryItemKind]*LookupService
}

// NewDiaryService needs a lookup service for every diary item kind.
func NewDiaryService(repo DiaryRepository, lookups map[types.DiaryItemKind]*LookupService, recorder *audit.Recorder, v *Validator) *DiaryService {
	s := &DiaryService{
		repo: repo,
		crud: newCRUD[types.DiaryEntry, types.DiaryFilter]("DiaryEntry", repo, recorder, v,
			func(e *types.DiaryEntry) *string { return &e.ID }),
		lookups: lookups,
	}
	s.crud.check = s.checkItems
	return s
}

func (s *DiaryService) checkItems(ctx context.Context, e *types.DiaryEntry) error {
	for _, kind := range types.DiaryItemKinds {
		items := e.Items(kind)
		seen := make(map[string]bool, len(items))
		for i := range items {
			if err := s.checkItem(ctx, kind, &items[i]); err != nil {
				return err
			}
			if seen[items[i].ItemID] {
				return invalidField(string(kind), "lists the same item twice", items[i].ItemID)
			}
			seen[items[i].ItemID] = true
			items[i].EntryID = e.ID
		}
	}
	return nil
}

func (s *DiaryService) checkItem(ctx context.Context, kind types.DiaryItemKind, item *types.DiaryItem) error {
	if err := s.crud.validate.Struct(*item); err != nil {
		return err
	}
	lookups, ok := s.lookups[kind]
	if !ok {
		return fmt.Errorf("unknown diary item kind %q", kind)
	}
	if err := lookups.Exists(ctx, string(kind), item.ItemID); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

func (s *DiaryService) Get(ctx context.Context, id string) (types.DiaryEntry, error) {
	return s.crud.get(ctx, id)
}

func (s *DiaryService) List(ctx context.Context, filter types.DiaryFilter, page types.Page) (types.List[types.DiaryEntry], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *DiaryService) Create(ctx context.Context, e types.DiaryEntry) (types.DiaryEntry, error) {
	return s.crud.create(ctx, e)
}

// Update replaces the item lists the patch sets; lists it leaves out are kept.
func (s *DiaryService) Update(ctx context.Context, id string, patch Patch[types.DiaryEntry]) (types.DiaryEntry, error) {
	return s.crud.update(ctx, id, func(e *types.DiaryEntry) error {
		for _, kind := range types.DiaryItemKinds {
			e.SetItems(kind, nil)
		}
		return patch(e)
	})
}

func (s *DiaryService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// AddItem attaches one item of kind to an entry.
func (s *DiaryService) AddItem(ctx context.Context, entryID string, kind types.DiaryItemKind, item types.DiaryItem) (types.DiaryItem, error) {
	if _, err := s.crud.get(ctx, entryID); err != nil {
		return types.DiaryItem{}, err
	}
	item.ID = ""
	item.EntryID = entryID
	if err := s.checkItem(ctx, kind, &item); err != nil {
		return types.DiaryItem{}, err
	}
	added, err := s.repo.AddItem(ctx, kind, item)
	if err != nil {
		return types.DiaryItem{}, translate("DiaryEntry", err)
	}
	s.crud.recorder.Created(ctx, diaryItemEntity(kind), added.ID, added)
	return added, nil
}

// RemoveItem detaches the item from the entry.
func (s *DiaryService) RemoveItem(ctx context.Context, entryID string, kind types.DiaryItemKind, itemID string) error {
	if _, ok := s.lookups[kind]; !ok {
		return fmt.Errorf("unknown diary item kind %q", kind)
	}
	if err := s.repo.RemoveItem(ctx, kind, entryID, itemID); err != nil {
		return translate(diaryItemEntity(kind), err)
	}
	s.crud.recorder.Deleted(ctx, diaryItemEntity(kind), entryID+":"+itemID,
		map[string]string{"entry_id": entryID, "item_id": itemID})
	return nil
}

func diaryItemEntity(kind types.DiaryItemKind) string {
	return "DiaryEntry." + string(kind)
}
