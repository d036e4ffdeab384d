package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

// LookupRepository stores the rows of one reference table.
type LookupRepository interface {
	Repository[types.Lookup, types.LookupFilter]
	Kind() types.LookupKind
	GetByCode(ctx context.Context, code string) (types.Lookup, error)
	CountReferences(ctx context.Context, id string) (int, error)
}

var lookupEntities = map[types.LookupKind]string{
	types.LookupUserTypes:      "UserType",
	types.LookupStatuses:       "Status",
	types.LookupAgendaTypes:    "AgendaType",
	types.LookupDiagnosisTypes: "DiagnosisType",
	types.LookupEmotions:       "Emotion",
	types.LookupSensations:     "Sensation",
	types.LookupFeelings:       "Feeling",
	types.LookupSymptoms:       "Symptom",
}

type LookupService struct {
	repo LookupRepository
	crud crud[types.Lookup, types.LookupFilter]
}

func NewLookupService(repo LookupRepository, recorder *audit.Recorder, v *Validator) *LookupService {
	entity, ok := lookupEntities[repo.Kind()]
	if !ok {
		entity = string(repo.Kind())
	}
	s := &LookupService{repo: repo}
	s.crud = newCRUD(entity, Repository[types.Lookup, types.LookupFilter](repo), recorder, v,
		func(l *types.Lookup) *string { return &l.ID })
	s.crud.check = func(ctx context.Context, row *types.Lookup) error {
		row.Code = strings.TrimSpace(row.Code)
		return nil
	}
	s.crud.guard = func(ctx context.Context, row types.Lookup) error {
		n, err := repo.CountReferences(ctx, row.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s %q is referenced by %d records: %w", entity, row.Code, n, ErrInUse)
		}
		return nil
	}
	return s
}

func (s *LookupService) Kind() types.LookupKind {
	return s.repo.Kind()
}

func (s *LookupService) Get(ctx context.Context, id string) (types.Lookup, error) {
	return s.crud.get(ctx, id)
}

func (s *LookupService) List(ctx context.Context, filter types.LookupFilter, page types.Page) (types.List[types.Lookup], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *LookupService) Create(ctx context.Context, row types.Lookup) (types.Lookup, error) {
	return s.crud.create(ctx, row)
}

func (s *LookupService) Update(ctx context.Context, id string, patch Patch[types.Lookup]) (types.Lookup, error) {
	return s.crud.update(ctx, id, patch)
}

// Delete is rejected with ErrInUse while any record references the row.
func (s *LookupService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// Exists reports a missing row as an invalid reference on field.
func (s *LookupService) Exists(ctx context.Context, field, id string) error {
	_, err := s.repo.GetByID(ctx, id)
	return reference(field, err)
}

// GetOrCreate returns the row with code, inserting it when missing. A
// concurrent insert of the same code is resolved by fetching once more.
func (s *LookupService) GetOrCreate(ctx context.Context, code, name string) (types.Lookup, error) {
	row, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Lookup{}, err
	}

	created, err := s.crud.create(ctx, types.Lookup{Code: code, Name: name, Active: true})
	if err == nil {
		return created, nil
	}
	var dup *store.DuplicateError
	if !errors.As(err, &dup) {
		return types.Lookup{}, err
	}
	return s.repo.GetByCode(ctx, code)
}
