package store

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var appointmentColumns = []string{
	"id", "agenda_id", "specialist_id", "patient_id", "start_at", "end_at", "status",
	"reason", "notes", "cancel_reason", "cancelled_at", "completed_at",
	"created_at", "updated_at",
}

// AppointmentRepository handles persistence for appointments.
type AppointmentRepository struct {
	t table[types.Appointment]
}

func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{t: table[types.Appointment]{
		db:      db,
		name:    "appointments",
		columns: appointmentColumns,
		mutable: appointmentColumns[1:12],
		order:   "start_at DESC, id",
	}}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (types.Appointment, error) {
	return r.t.get(ctx, id)
}

func (r *AppointmentRepository) List(ctx context.Context, filter types.AppointmentFilter, page types.Page) ([]types.Appointment, int, error) {
	var w where
	w.eq("specialist_id", filter.SpecialistID)
	w.eq("patient_id", filter.PatientID)
	w.eq("agenda_id", filter.AgendaID)
	w.eq("status", string(filter.Status))
	w.between("start_at", filter.From, filter.To)
	return r.t.list(ctx, w, page)
}

// ExistsActiveAtStart reports whether the specialist already has a
// non-cancelled appointment starting exactly at start. excludeID skips the
// appointment being updated.
func (r *AppointmentRepository) ExistsActiveAtStart(ctx context.Context, specialistID string, start time.Time, excludeID string) (bool, error) {
	var w where
	w.add("specialist_id = ?", specialistID)
	w.add("start_at = ?", start)
	w.add("status <> ?", string(types.AppointmentCancelled))
	if excludeID != "" {
		w.add("id <> ?", excludeID)
	}
	n, err := r.t.count(ctx, w)
	return n > 0, err
}

func (r *AppointmentRepository) Create(ctx context.Context, appt types.Appointment) (types.Appointment, error) {
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if err := r.t.insert(ctx, appt); err != nil {
		return types.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, appt types.Appointment) (types.Appointment, error) {
	appt.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, appt); err != nil {
		return types.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// CountChildren counts the contents, diagnoses, records and follow-ups of an appointment.
func (r *AppointmentRepository) CountChildren(ctx context.Context, id string) (int, error) {
	return countRefs(ctx, r.t.db, []reference{
		{"appointment_contents", "appointment_id"},
		{"appointment_diagnoses", "appointment_id"},
		{"appointment_records", "appointment_id"},
		{"follow_ups", "appointment_id"},
	}, id)
}

// ChildRepository persists one of the records that hang off an appointment.
type ChildRepository[T any] struct {
	t     table[T]
	stamp func(row *T, now time.Time, created bool)
}

func (r *ChildRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	return r.t.get(ctx, id)
}

func (r *ChildRepository[T]) List(ctx context.Context, filter types.AppointmentChildFilter, page types.Page) ([]T, int, error) {
	var w where
	w.eq("appointment_id", filter.AppointmentID)
	return r.t.list(ctx, w, page)
}

func (r *ChildRepository[T]) Create(ctx context.Context, row T) (T, error) {
	r.stamp(&row, time.Now().UTC(), true)
	if err := r.t.insert(ctx, row); err != nil {
		var zero T
		return zero, err
	}
	return row, nil
}

func (r *ChildRepository[T]) Update(ctx context.Context, row T) (T, error) {
	r.stamp(&row, time.Now().UTC(), false)
	if err := r.t.update(ctx, row); err != nil {
		var zero T
		return zero, err
	}
	return row, nil
}

func (r *ChildRepository[T]) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func childTable[T any](db *sqlx.DB, name string, columns []string) table[T] {
	return table[T]{
		db:      db,
		name:    name,
		columns: columns,
		mutable: columns[2 : len(columns)-2],
		order:   "created_at, id",
	}
}

func NewAppointmentContentRepository(db *sqlx.DB) *ChildRepository[types.AppointmentContent] {
	return &ChildRepository[types.AppointmentContent]{
		t: childTable[types.AppointmentContent](db, "appointment_contents",
			[]string{"id", "appointment_id", "title", "body", "created_at", "updated_at"}),
		stamp: func(row *types.AppointmentContent, now time.Time, created bool) {
			if created {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		},
	}
}

func NewAppointmentDiagnosisRepository(db *sqlx.DB) *ChildRepository[types.AppointmentDiagnosis] {
	return &ChildRepository[types.AppointmentDiagnosis]{
		t: childTable[types.AppointmentDiagnosis](db, "appointment_diagnoses",
			[]string{"id", "appointment_id", "diagnosis_type_id", "notes", "created_at", "updated_at"}),
		stamp: func(row *types.AppointmentDiagnosis, now time.Time, created bool) {
			if created {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		},
	}
}

func NewAppointmentRecordRepository(db *sqlx.DB) *ChildRepository[types.AppointmentRecord] {
	return &ChildRepository[types.AppointmentRecord]{
		t: childTable[types.AppointmentRecord](db, "appointment_records",
			[]string{"id", "appointment_id", "summary", "attachments", "created_at", "updated_at"}),
		stamp: func(row *types.AppointmentRecord, now time.Time, created bool) {
			if created {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		},
	}
}

func NewFollowUpRepository(db *sqlx.DB) *ChildRepository[types.FollowUp] {
	return &ChildRepository[types.FollowUp]{
		t: childTable[types.FollowUp](db, "follow_ups",
			[]string{"id", "appointment_id", "scheduled_for", "notes", "completed", "created_at", "updated_at"}),
		stamp: func(row *types.FollowUp, now time.Time, created bool) {
			if created {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		},
	}
}
