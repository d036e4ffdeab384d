package services

import (
	"context"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/store/memory"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAppointmentService(t *testing.T) (*AppointmentService, *memory.AppointmentRepository) {
	t.Helper()
	repo := memory.NewAppointmentRepository()
	recorder := audit.NewRecorder(types.AuditDomainAgenda, audit.NewMemoryStore(), zap.NewNop())
	svc := NewAppointmentService(repo, nil, recorder, NewValidator())
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func appointmentAt(start time.Time, duration time.Duration) types.Appointment {
	return types.Appointment{
		SpecialistID: "spec-1",
		PatientID:    "pat-1",
		StartAt:      start,
		EndAt:        start.Add(duration),
	}
}

func TestAppointmentConflictOnExactStartOnly(t *testing.T) {
	svc, _ := newAppointmentService(t)
	ctx := context.Background()
	nine := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	first, err := svc.Create(ctx, appointmentAt(nine, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.AppointmentScheduled, first.Status)

	_, err = svc.Create(ctx, appointmentAt(nine, 30*time.Minute))
	assert.ErrorIs(t, err, ErrScheduleConflict)

	// Overlapping intervals with a different start are accepted.
	_, err = svc.Create(ctx, appointmentAt(nine.Add(30*time.Minute), time.Hour))
	require.NoError(t, err)

	other := appointmentAt(nine, time.Hour)
	other.SpecialistID = "spec-2"
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, first.ID, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, appointmentAt(nine, time.Hour))
	require.NoError(t, err)
}

func TestAppointmentRescheduleChecksConflict(t *testing.T) {
	svc, _ := newAppointmentService(t)
	ctx := context.Background()
	nine := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, appointmentAt(nine, time.Hour))
	require.NoError(t, err)
	second, err := svc.Create(ctx, appointmentAt(nine.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, func(a *types.Appointment) error {
		a.StartAt = nine
		a.EndAt = nine.Add(time.Hour)
		return nil
	})
	assert.ErrorIs(t, err, ErrScheduleConflict)

	// Saving an appointment does not conflict with itself.
	updated, err := svc.Update(ctx, second.ID, func(a *types.Appointment) error {
		notes := "bring results"
		a.Notes = &notes
		a.Status = types.AppointmentCompleted
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.AppointmentScheduled, updated.Status)
}

func TestAppointmentEndMustFollowStart(t *testing.T) {
	svc, _ := newAppointmentService(t)
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), appointmentAt(start, -time.Minute))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_at", verr.Fields[0].Field)
}

func TestAppointmentLifecycle(t *testing.T) {
	svc, _ := newAppointmentService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	a, err := svc.Create(ctx, appointmentAt(start, time.Hour))
	require.NoError(t, err)

	done, err := svc.Complete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AppointmentCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = svc.Complete(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.Cancel(ctx, a.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	b, err := svc.Create(ctx, appointmentAt(start.Add(time.Hour), time.Hour))
	require.NoError(t, err)
	reason := "patient ill"
	cancelled, err := svc.Cancel(ctx, b.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, "patient ill", *cancelled.CancelReason)
	_, err = svc.Cancel(ctx, b.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAppointmentDeleteGuard(t *testing.T) {
	svc, repo := newAppointmentService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	a, err := svc.Create(ctx, appointmentAt(start, time.Hour))
	require.NoError(t, err)
	repo.AddChild(a.ID)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrInUse)

	b, err := svc.Create(ctx, appointmentAt(start.Add(time.Hour), time.Hour))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChildRequiresAppointment(t *testing.T) {
	svc, _ := newAppointmentService(t)
	ctx := context.Background()
	v := NewValidator()

	contents := NewAppointmentContentService(
		newFakeRepo[types.AppointmentContent, types.AppointmentChildFilter](func(c *types.AppointmentContent) *string { return &c.ID }),
		svc, nil, v)
	_, err := contents.Create(ctx, types.AppointmentContent{AppointmentID: "missing", Title: "Notes"})
	assert.ErrorIs(t, err, ErrInvalidReference)

	a, err := svc.Create(ctx, appointmentAt(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), time.Hour))
	require.NoError(t, err)
	created, err := contents.Create(ctx, types.AppointmentContent{AppointmentID: a.ID, Title: "Notes"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	diagnosisTypes := NewLookupService(memory.NewLookupRepository(types.LookupDiagnosisTypes), nil, v)
	diagnoses := NewAppointmentDiagnosisService(
		newFakeRepo[types.AppointmentDiagnosis, types.AppointmentChildFilter](func(d *types.AppointmentDiagnosis) *string { return &d.ID }),
		svc, diagnosisTypes, nil, v)
	_, err = diagnoses.Create(ctx, types.AppointmentDiagnosis{AppointmentID: a.ID, DiagnosisTypeID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidReference)

	dt, err := diagnosisTypes.Create(ctx, types.Lookup{Code: "F41", Name: "Anxiety"})
	require.NoError(t, err)
	_, err = diagnoses.Create(ctx, types.AppointmentDiagnosis{AppointmentID: a.ID, DiagnosisTypeID: dt.ID})
	require.NoError(t, err)
}
