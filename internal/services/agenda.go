package services

import (
	"context"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type AgendaRepository interface {
	Repository[types.Agenda, types.AgendaFilter]
	CountDependents(ctx context.Context, id string) (int, error)
}

type AgendaDayRepository = Repository[types.AgendaDay, types.AgendaDayFilter]

type AgendaService struct {
	crud crud[types.Agenda, types.AgendaFilter]
}

func NewAgendaService(repo AgendaRepository, agendaTypes *LookupService, recorder *audit.Recorder, v *Validator) *AgendaService {
	s := &AgendaService{
		crud: newCRUD[types.Agenda, types.AgendaFilter]("Agenda", repo, recorder, v,
			func(a *types.Agenda) *string { return &a.ID }),
	}
	s.crud.check = func(ctx context.Context, a *types.Agenda) error {
		return agendaTypes.Exists(ctx, "agenda_type_id", a.AgendaTypeID)
	}
	s.crud.guard = func(ctx context.Context, a types.Agenda) error {
		n, err := repo.CountDependents(ctx, a.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("agenda has %d days or appointments: %w", n, ErrInUse)
		}
		return nil
	}
	return s
}

func (s *AgendaService) Get(ctx context.Context, id string) (types.Agenda, error) {
	return s.crud.get(ctx, id)
}

func (s *AgendaService) List(ctx context.Context, filter types.AgendaFilter, page types.Page) (types.List[types.Agenda], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *AgendaService) Create(ctx context.Context, a types.Agenda) (types.Agenda, error) {
	return s.crud.create(ctx, a)
}

func (s *AgendaService) Update(ctx context.Context, id string, patch Patch[types.Agenda]) (types.Agenda, error) {
	return s.crud.update(ctx, id, patch)
}

// Delete is rejected while days or appointments reference the agenda.
func (s *AgendaService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// Exists reports a missing agenda as an invalid reference.
func (s *AgendaService) Exists(ctx context.Context, id string) error {
	_, err := s.crud.repo.GetByID(ctx, id)
	return reference("agenda_id", err)
}

type AgendaDayService struct {
	crud crud[types.AgendaDay, types.AgendaDayFilter]
}

func NewAgendaDayService(repo AgendaDayRepository, agendas *AgendaService, recorder *audit.Recorder, v *Validator) *AgendaDayService {
	s := &AgendaDayService{
		crud: newCRUD("AgendaDay", repo, recorder, v, func(d *types.AgendaDay) *string { return &d.ID }),
	}
	s.crud.check = func(ctx context.Context, d *types.AgendaDay) error {
		if err := checkWindow(d.StartTime, d.EndTime); err != nil {
			return err
		}
		return agendas.Exists(ctx, d.AgendaID)
	}
	return s
}

// checkWindow requires two "HH:MM" times with start before end.
func checkWindow(start, end string) error {
	from, err := time.Parse("15:04", start)
	if err != nil {
		return invalidField("start_time", "must be HH:MM", start)
	}
	to, err := time.Parse("15:04", end)
	if err != nil {
		return invalidField("end_time", "must be HH:MM", end)
	}
	if !from.Before(to) {
		return invalidField("end_time", "must be after start_time", end)
	}
	return nil
}

func (s *AgendaDayService) Get(ctx context.Context, id string) (types.AgendaDay, error) {
	return s.crud.get(ctx, id)
}

func (s *AgendaDayService) List(ctx context.Context, filter types.AgendaDayFilter, page types.Page) (types.List[types.AgendaDay], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *AgendaDayService) Create(ctx context.Context, d types.AgendaDay) (types.AgendaDay, error) {
	return s.crud.create(ctx, d)
}

func (s *AgendaDayService) Update(ctx context.Context, id string, patch Patch[types.AgendaDay]) (types.AgendaDay, error) {
	return s.crud.update(ctx, id, patch)
}

func (s *AgendaDayService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}
