package store

import (
	"context"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var lookupColumns = []string{"id", "code", "name", "description", "active", "created_at", "updated_at"}

type lookupSchema struct {
	table string
	refs  []reference
}

// lookupSchemas is the whitelist of reference tables and the columns that
// point at each of them.
var lookupSchemas = map[types.LookupKind]lookupSchema{
	types.LookupUserTypes:      {table: "user_types", refs: []reference{{"users", "user_type_id"}}},
	types.LookupStatuses:       {table: "statuses", refs: []reference{{"users", "status_id"}}},
	types.LookupAgendaTypes:    {table: "agenda_types", refs: []reference{{"agendas", "agenda_type_id"}}},
	types.LookupDiagnosisTypes: {table: "diagnosis_types", refs: []reference{{"appointment_diagnoses", "diagnosis_type_id"}}},
	types.LookupEmotions:       {table: "emotions", refs: []reference{{"diary_entry_emotions", "item_id"}}},
	types.LookupSensations:     {table: "sensations", refs: []reference{{"diary_entry_sensations", "item_id"}}},
	types.LookupFeelings:       {table: "feelings", refs: []reference{{"diary_entry_feelings", "item_id"}}},
	types.LookupSymptoms:       {table: "symptoms", refs: []reference{{"diary_entry_symptoms", "item_id"}}},
}

// LookupRepository serves any of the reference tables.
type LookupRepository struct {
	kind types.LookupKind
	refs []reference
	t    table[types.Lookup]
}

func NewLookupRepository(db *sqlx.DB, kind types.LookupKind) (*LookupRepository, error) {
	schema, ok := lookupSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown lookup kind %q", kind)
	}
	return &LookupRepository{
		kind: kind,
		refs: schema.refs,
		t: table[types.Lookup]{
			db:      db,
			name:    schema.table,
			columns: lookupColumns,
			mutable: lookupColumns[1:5],
			order:   "name, id",
		},
	}, nil
}

func (r *LookupRepository) Kind() types.LookupKind {
	return r.kind
}

func (r *LookupRepository) GetByID(ctx context.Context, id string) (types.Lookup, error) {
	return r.t.get(ctx, id)
}

func (r *LookupRepository) GetByCode(ctx context.Context, code string) (types.Lookup, error) {
	var w where
	w.add("code = ?", code)
	return r.t.first(ctx, w)
}

func (r *LookupRepository) List(ctx context.Context, filter types.LookupFilter, page types.Page) ([]types.Lookup, int, error) {
	var w where
	w.eq("code", filter.Code)
	w.eqBool("active", filter.Active)
	return r.t.list(ctx, w, page)
}

func (r *LookupRepository) Create(ctx context.Context, row types.Lookup) (types.Lookup, error) {
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := r.t.insert(ctx, row); err != nil {
		return types.Lookup{}, err
	}
	return row, nil
}

func (r *LookupRepository) Update(ctx context.Context, row types.Lookup) (types.Lookup, error) {
	row.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, row); err != nil {
		return types.Lookup{}, err
	}
	return row, nil
}

func (r *LookupRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// CountReferences reports how many rows still point at id.
func (r *LookupRepository) CountReferences(ctx context.Context, id string) (int, error) {
	return countRefs(ctx, r.t.db, r.refs, id)
}
