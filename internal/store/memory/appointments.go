package memory

import (
	"context"
	"sync"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type AppointmentRepository struct {
	mu       sync.RWMutex
	byID     map[string]types.Appointment
	children map[string]int
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{
		byID:     make(map[string]types.Appointment),
		children: make(map[string]int),
	}
}

// AddChild registers a dependent record (content, diagnosis, record or
// follow-up) for appointmentID.
func (r *AppointmentRepository) AddChild(appointmentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children[appointmentID]++
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (types.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return types.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (r *AppointmentRepository) List(ctx context.Context, filter types.AppointmentFilter, page types.Page) ([]types.Appointment, int, error) {
	r.mu.RLock()
	out := make([]types.Appointment, 0)
	for _, a := range r.byID {
		if filter.SpecialistID != "" && a.SpecialistID != filter.SpecialistID {
			continue
		}
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.AgendaID != "" && (a.AgendaID == nil || *a.AgendaID != filter.AgendaID) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.From != nil && a.StartAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.StartAt.After(*filter.To) {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()

	items, total := paginate(out, page, func(a, b types.Appointment) bool {
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.After(b.StartAt)
		}
		return a.ID < b.ID
	})
	return items, total, nil
}

func (r *AppointmentRepository) ExistsActiveAtStart(ctx context.Context, specialistID string, start time.Time, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if a.ID == excludeID || a.SpecialistID != specialistID || a.Status == types.AppointmentCancelled {
			continue
		}
		if a.StartAt.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, a types.Appointment) (types.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.byID[a.ID] = a
	return a, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, a types.Appointment) (types.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[a.ID]
	if !ok {
		return types.Appointment{}, store.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.byID[a.ID] = a
	return a, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *AppointmentRepository) CountChildren(ctx context.Context, id string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.children[id], nil
}
