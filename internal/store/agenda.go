package store

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var agendaColumns = []string{
	"id", "specialist_id", "agenda_type_id", "name", "description", "active", "created_at", "updated_at",
}

// AgendaRepository handles persistence for agendas.
type AgendaRepository struct {
	t table[types.Agenda]
}

func NewAgendaRepository(db *sqlx.DB) *AgendaRepository {
	return &AgendaRepository{t: table[types.Agenda]{
		db:      db,
		name:    "agendas",
		columns: agendaColumns,
		mutable: agendaColumns[1:6],
		order:   "created_at DESC, id",
	}}
}

func (r *AgendaRepository) GetByID(ctx context.Context, id string) (types.Agenda, error) {
	return r.t.get(ctx, id)
}

func (r *AgendaRepository) List(ctx context.Context, filter types.AgendaFilter, page types.Page) ([]types.Agenda, int, error) {
	var w where
	w.eq("specialist_id", filter.SpecialistID)
	w.eq("agenda_type_id", filter.AgendaTypeID)
	w.eqBool("active", filter.Active)
	return r.t.list(ctx, w, page)
}

func (r *AgendaRepository) Create(ctx context.Context, agenda types.Agenda) (types.Agenda, error) {
	now := time.Now().UTC()
	agenda.CreatedAt = now
	agenda.UpdatedAt = now
	if err := r.t.insert(ctx, agenda); err != nil {
		return types.Agenda{}, err
	}
	return agenda, nil
}

func (r *AgendaRepository) Update(ctx context.Context, agenda types.Agenda) (types.Agenda, error) {
	agenda.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, agenda); err != nil {
		return types.Agenda{}, err
	}
	return agenda, nil
}

func (r *AgendaRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// CountDependents counts the days and appointments attached to an agenda.
func (r *AgendaRepository) CountDependents(ctx context.Context, id string) (int, error) {
	return countRefs(ctx, r.t.db, []reference{
		{"agenda_days", "agenda_id"},
		{"appointments", "agenda_id"},
	}, id)
}

var agendaDayColumns = []string{
	"id", "agenda_id", "day_of_week", "start_time", "end_time", "slot_minutes", "available", "created_at", "updated_at",
}

// AgendaDayRepository handles persistence for agenda days.
type AgendaDayRepository struct {
	t table[types.AgendaDay]
}

func NewAgendaDayRepository(db *sqlx.DB) *AgendaDayRepository {
	return &AgendaDayRepository{t: table[types.AgendaDay]{
		db:      db,
		name:    "agenda_days",
		columns: agendaDayColumns,
		mutable: agendaDayColumns[2:7],
		order:   "day_of_week, start_time, id",
	}}
}

func (r *AgendaDayRepository) GetByID(ctx context.Context, id string) (types.AgendaDay, error) {
	return r.t.get(ctx, id)
}

func (r *AgendaDayRepository) List(ctx context.Context, filter types.AgendaDayFilter, page types.Page) ([]types.AgendaDay, int, error) {
	var w where
	w.eq("agenda_id", filter.AgendaID)
	if filter.DayOfWeek != nil {
		w.add("day_of_week = ?", *filter.DayOfWeek)
	}
	return r.t.list(ctx, w, page)
}

func (r *AgendaDayRepository) Create(ctx context.Context, day types.AgendaDay) (types.AgendaDay, error) {
	now := time.Now().UTC()
	day.CreatedAt = now
	day.UpdatedAt = now
	if err := r.t.insert(ctx, day); err != nil {
		return types.AgendaDay{}, err
	}
	return day, nil
}

func (r *AgendaDayRepository) Update(ctx context.Context, day types.AgendaDay) (types.AgendaDay, error) {
	day.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, day); err != nil {
		return types.AgendaDay{}, err
	}
	return day, nil
}

func (r *AgendaDayRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
