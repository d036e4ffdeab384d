package services

import (
	"context"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type AppointmentRepository interface {
	Repository[types.Appointment, types.AppointmentFilter]
	ExistsActiveAtStart(ctx context.Context, specialistID string, start time.Time, excludeID string) (bool, error)
	CountChildren(ctx context.Context, id string) (int, error)
}

// AppointmentService books appointments. Two non-cancelled appointments of a
// specialist conflict only when their start times are identical.
type AppointmentService struct {
	repo    AppointmentRepository
	agendas *AgendaService
	crud    crud[types.Appointment, types.AppointmentFilter]
	now     Clock
}

func NewAppointmentService(repo AppointmentRepository, agendas *AgendaService, recorder *audit.Recorder, v *Validator) *AppointmentService {
	s := &AppointmentService{
		repo:    repo,
		agendas: agendas,
		crud: newCRUD[types.Appointment, types.AppointmentFilter]("Appointment", repo, recorder, v,
			func(a *types.Appointment) *string { return &a.ID }),
	}
	s.crud.check = s.check
	s.crud.guard = func(ctx context.Context, a types.Appointment) error {
		n, err := repo.CountChildren(ctx, a.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("appointment has %d dependent records: %w", n, ErrInUse)
		}
		return nil
	}
	return s
}

func (s *AppointmentService) check(ctx context.Context, a *types.Appointment) error {
	if a.AgendaID != nil && s.agendas != nil {
		if err := s.agendas.Exists(ctx, *a.AgendaID); err != nil {
			return err
		}
	}
	if a.Status == types.AppointmentCancelled {
		return nil
	}
	taken, err := s.repo.ExistsActiveAtStart(ctx, a.SpecialistID, a.StartAt, a.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrScheduleConflict
	}
	return nil
}

func (s *AppointmentService) Get(ctx context.Context, id string) (types.Appointment, error) {
	return s.crud.get(ctx, id)
}

func (s *AppointmentService) List(ctx context.Context, filter types.AppointmentFilter, page types.Page) (types.List[types.Appointment], error) {
	return s.crud.list(ctx, filter, page)
}

// Create books a scheduled appointment.
func (s *AppointmentService) Create(ctx context.Context, a types.Appointment) (types.Appointment, error) {
	a.Status = types.AppointmentScheduled
	a.CancelledAt, a.CancelReason, a.CompletedAt = nil, nil, nil
	return s.crud.create(ctx, a)
}

// Update reschedules or edits an appointment. Status changes go through
// Cancel and Complete.
func (s *AppointmentService) Update(ctx context.Context, id string, patch Patch[types.Appointment]) (types.Appointment, error) {
	return s.crud.update(ctx, id, func(a *types.Appointment) error {
		keep := *a
		if err := patch(a); err != nil {
			return err
		}
		a.Status = keep.Status
		a.CancelReason, a.CancelledAt, a.CompletedAt = keep.CancelReason, keep.CancelledAt, keep.CompletedAt
		return nil
	})
}

// Cancel is rejected for cancelled or completed appointments.
func (s *AppointmentService) Cancel(ctx context.Context, id string, reason *string) (types.Appointment, error) {
	before, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Appointment{}, err
	}
	if before.Status != types.AppointmentScheduled {
		return types.Appointment{}, fmt.Errorf("appointment is %s: %w", before.Status, ErrInvalidState)
	}
	a := before
	now := s.now.now()
	a.Status = types.AppointmentCancelled
	a.CancelledAt = &now
	a.CancelReason = reason
	return s.crud.save(ctx, before, a)
}

// Complete is rejected unless the appointment is scheduled.
func (s *AppointmentService) Complete(ctx context.Context, id string) (types.Appointment, error) {
	before, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Appointment{}, err
	}
	if before.Status != types.AppointmentScheduled {
		return types.Appointment{}, fmt.Errorf("appointment is %s: %w", before.Status, ErrInvalidState)
	}
	a := before
	now := s.now.now()
	a.Status = types.AppointmentCompleted
	a.CompletedAt = &now
	return s.crud.save(ctx, before, a)
}

// Delete is rejected while contents, diagnoses, records or follow-ups exist.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// Exists reports a missing appointment as an invalid reference.
func (s *AppointmentService) Exists(ctx context.Context, id string) error {
	_, err := s.repo.GetByID(ctx, id)
	return reference("appointment_id", err)
}
