package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var diaryEntryColumns = []string{
	"id", "user_id", "entry_date", "title", "content", "mood_score", "created_at", "updated_at",
}

// diaryItemTables maps each item kind to its join table and lookup table.
var diaryItemTables = map[types.DiaryItemKind][2]string{
	types.DiaryEmotions:   {"diary_entry_emotions", "emotions"},
	types.DiarySensations: {"diary_entry_sensations", "sensations"},
	types.DiaryFeelings:   {"diary_entry_feelings", "feelings"},
	types.DiarySymptoms:   {"diary_entry_symptoms", "symptoms"},
}

type diaryItemRow struct {
	types.DiaryItem
	ItemCode string `db:"item_code"`
	ItemName string `db:"item_name"`
}

// DiaryRepository handles persistence for diary entries and their join records.
type DiaryRepository struct {
	db *sqlx.DB
	t  table[types.DiaryEntry]
}

func NewDiaryRepository(db *sqlx.DB) *DiaryRepository {
	return &DiaryRepository{
		db: db,
		t: table[types.DiaryEntry]{
			db:      db,
			name:    "diary_entries",
			columns: diaryEntryColumns,
			mutable: diaryEntryColumns[2:6],
			order:   "entry_date DESC, id",
		},
	}
}

func (r *DiaryRepository) GetByID(ctx context.Context, id string) (types.DiaryEntry, error) {
	entry, err := r.t.get(ctx, id)
	if err != nil {
		return types.DiaryEntry{}, err
	}
	entries := []types.DiaryEntry{entry}
	if err := r.loadItems(ctx, entries); err != nil {
		return types.DiaryEntry{}, err
	}
	return entries[0], nil
}

func (r *DiaryRepository) List(ctx context.Context, filter types.DiaryFilter, page types.Page) ([]types.DiaryEntry, int, error) {
	var w where
	w.eq("user_id", filter.UserID)
	w.between("entry_date", filter.From, filter.To)
	entries, total, err := r.t.list(ctx, w, page)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadItems(ctx, entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Create inserts the entry and all of its join records in one transaction.
func (r *DiaryRepository) Create(ctx context.Context, entry types.DiaryEntry) (types.DiaryEntry, error) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf("INSERT INTO diary_entries (%s) VALUES (:%s)",
			joinColumns(diaryEntryColumns), strings.Join(diaryEntryColumns, ", :"))
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return translate(err)
		}
		for _, kind := range types.DiaryItemKinds {
			items, err := insertItems(ctx, tx, kind, entry.ID, entry.Items(kind), now)
			if err != nil {
				return err
			}
			entry.SetItems(kind, items)
		}
		return nil
	})
	if err != nil {
		return types.DiaryEntry{}, err
	}
	return entry, nil
}

// Update rewrites the entry and replaces the join records of every kind whose
// slice is non-nil.
func (r *DiaryRepository) Update(ctx context.Context, entry types.DiaryEntry) (types.DiaryEntry, error) {
	now := time.Now().UTC()
	entry.UpdatedAt = now

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE diary_entries
			SET entry_date = :entry_date, title = :title, content = :content,
				mood_score = :mood_score, updated_at = :updated_at
			WHERE id = :id`
		result, err := tx.NamedExecContext(ctx, query, entry)
		if err != nil {
			return translate(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		for _, kind := range types.DiaryItemKinds {
			items := entry.Items(kind)
			if items == nil {
				continue
			}
			tables := diaryItemTables[kind]
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables[0]+" WHERE entry_id = $1", entry.ID); err != nil {
				return translate(err)
			}
			inserted, err := insertItems(ctx, tx, kind, entry.ID, items, now)
			if err != nil {
				return err
			}
			entry.SetItems(kind, inserted)
		}
		return nil
	})
	if err != nil {
		return types.DiaryEntry{}, err
	}
	return r.GetByID(ctx, entry.ID)
}

func (r *DiaryRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// AddItem inserts a single join record.
func (r *DiaryRepository) AddItem(ctx context.Context, kind types.DiaryItemKind, item types.DiaryItem) (types.DiaryItem, error) {
	var out []types.DiaryItem
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = insertItems(ctx, tx, kind, item.EntryID, []types.DiaryItem{item}, time.Now().UTC())
		return err
	})
	if err != nil {
		return types.DiaryItem{}, err
	}
	return out[0], nil
}

// RemoveItem deletes the join record linking entryID to itemID.
func (r *DiaryRepository) RemoveItem(ctx context.Context, kind types.DiaryItemKind, entryID, itemID string) error {
	tables, ok := diaryItemTables[kind]
	if !ok {
		return fmt.Errorf("unknown diary item kind %q", kind)
	}
	query := "DELETE FROM " + tables[0] + " WHERE entry_id = $1 AND item_id = $2"
	result, err := r.db.ExecContext(ctx, query, entryID, itemID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

func (r *DiaryRepository) loadItems(ctx context.Context, entries []types.DiaryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}

	for _, kind := range types.DiaryItemKinds {
		tables := diaryItemTables[kind]
		query := fmt.Sprintf(`
			SELECT i.id, i.entry_id, i.item_id, i.intensity, i.notes, i.created_at,
				l.code AS item_code, l.name AS item_name
			FROM %s i
			JOIN %s l ON l.id = i.item_id
			WHERE i.entry_id = ANY($1)
			ORDER BY i.created_at, i.id`, tables[0], tables[1])
		var rows []diaryItemRow
		if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
			return translate(err)
		}
		for i := range entries {
			entries[i].SetItems(kind, []types.DiaryItem{})
		}
		for _, row := range rows {
			item := row.DiaryItem
			item.Item = &types.Lookup{ID: row.ItemID, Code: row.ItemCode, Name: row.ItemName, Active: true}
			e := &entries[index[row.EntryID]]
			e.SetItems(kind, append(e.Items(kind), item))
		}
	}
	return nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, kind types.DiaryItemKind, entryID string, items []types.DiaryItem, now time.Time) ([]types.DiaryItem, error) {
	tables, ok := diaryItemTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown diary item kind %q", kind)
	}
	query := "INSERT INTO " + tables[0] +
		" (id, entry_id, item_id, intensity, notes, created_at) VALUES (:id, :entry_id, :item_id, :intensity, :notes, :created_at)"
	out := make([]types.DiaryItem, 0, len(items))
	for _, item := range items {
		item.EntryID = entryID
		item.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
			return nil, translate(err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *DiaryRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
