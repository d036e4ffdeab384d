package services

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/google/uuid"
)

// Repository is the storage contract shared by the plain CRUD entities.
type Repository[T any, F any] interface {
	GetByID(ctx context.Context, id string) (T, error)
	List(ctx context.Context, filter F, page types.Page) ([]T, int, error)
	Create(ctx context.Context, row T) (T, error)
	Update(ctx context.Context, row T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Patch applies client changes to a loaded row.
type Patch[T any] func(row *T) error

// crud implements get, list, create, update and delete for one entity with
// validation and audit. Entity specific rules plug in through check and guard.
type crud[T any, F any] struct {
	entity   string
	repo     Repository[T, F]
	recorder *audit.Recorder
	validate *Validator
	id       func(row *T) *string

	// check runs after validation on create and update.
	check func(ctx context.Context, row *T) error
	// guard runs before delete.
	guard func(ctx context.Context, row T) error

	newID func() string
}

func newCRUD[T any, F any](entity string, repo Repository[T, F], recorder *audit.Recorder, v *Validator, id func(*T) *string) crud[T, F] {
	return crud[T, F]{
		entity:   entity,
		repo:     repo,
		recorder: recorder,
		validate: v,
		id:       id,
		newID:    uuid.NewString,
	}
}

func (c crud[T, F]) get(ctx context.Context, id string) (T, error) {
	row, err := c.repo.GetByID(ctx, id)
	return row, translate(c.entity, err)
}

func (c crud[T, F]) list(ctx context.Context, filter F, page types.Page) (types.List[T], error) {
	items, total, err := c.repo.List(ctx, filter, page)
	if err != nil {
		return types.List[T]{}, err
	}
	return types.NewList(items, page, total), nil
}

func (c crud[T, F]) create(ctx context.Context, row T) (T, error) {
	var zero T
	*c.id(&row) = c.newID()
	if err := c.validate.Struct(row); err != nil {
		return zero, err
	}
	if c.check != nil {
		if err := c.check(ctx, &row); err != nil {
			return zero, err
		}
	}
	created, err := c.repo.Create(ctx, row)
	if err != nil {
		return zero, translate(c.entity, err)
	}
	c.recorder.Created(ctx, c.entity, *c.id(&created), created)
	return created, nil
}

func (c crud[T, F]) update(ctx context.Context, id string, patch Patch[T]) (T, error) {
	var zero T
	before, err := c.get(ctx, id)
	if err != nil {
		return zero, err
	}
	row := before
	if err := patch(&row); err != nil {
		return zero, err
	}
	*c.id(&row) = id
	return c.save(ctx, before, row)
}

// save validates and persists row, recording an UPDATE against before.
func (c crud[T, F]) save(ctx context.Context, before, row T) (T, error) {
	var zero T
	if err := c.validate.Struct(row); err != nil {
		return zero, err
	}
	if c.check != nil {
		if err := c.check(ctx, &row); err != nil {
			return zero, err
		}
	}
	updated, err := c.repo.Update(ctx, row)
	if err != nil {
		return zero, translate(c.entity, err)
	}
	c.recorder.Updated(ctx, c.entity, *c.id(&updated), before, updated)
	return updated, nil
}

func (c crud[T, F]) delete(ctx context.Context, id string) error {
	row, err := c.get(ctx, id)
	if err != nil {
		return err
	}
	if c.guard != nil {
		if err := c.guard(ctx, row); err != nil {
			return err
		}
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		return translate(c.entity, err)
	}
	c.recorder.Deleted(ctx, c.entity, id, row)
	return nil
}

// Clock is swapped in tests.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
