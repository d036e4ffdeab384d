package store

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var personColumns = []string{
	"id", "first_name", "last_name", "doc_type", "doc_number", "birth_date",
	"country_id", "department_id", "city_id", "created_at", "updated_at",
}

// PersonRepository handles persistence for persons.
type PersonRepository struct {
	t table[types.Person]
}

func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{t: table[types.Person]{
		db:      db,
		name:    "persons",
		columns: personColumns,
		mutable: personColumns[1:9],
		order:   "last_name, first_name, id",
	}}
}

func (r *PersonRepository) GetByID(ctx context.Context, id string) (types.Person, error) {
	return r.t.get(ctx, id)
}

func (r *PersonRepository) GetByDocument(ctx context.Context, docType, docNumber string) (types.Person, error) {
	var w where
	w.add("doc_type = ? AND doc_number = ?", docType, docNumber)
	return r.t.first(ctx, w)
}

func (r *PersonRepository) List(ctx context.Context, filter types.PersonFilter, page types.Page) ([]types.Person, int, error) {
	var w where
	w.eq("doc_type", filter.DocType)
	w.eq("doc_number", filter.DocNumber)
	if filter.Name != "" {
		w.add("(first_name || ' ' || last_name) ILIKE ?", "%"+filter.Name+"%")
	}
	return r.t.list(ctx, w, page)
}

func (r *PersonRepository) Create(ctx context.Context, person types.Person) (types.Person, error) {
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now
	if err := r.t.insert(ctx, person); err != nil {
		return types.Person{}, err
	}
	return person, nil
}

func (r *PersonRepository) Update(ctx context.Context, person types.Person) (types.Person, error) {
	person.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, person); err != nil {
		return types.Person{}, err
	}
	return person, nil
}

func (r *PersonRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
