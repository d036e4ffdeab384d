package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/mail"
	"github.com/GurgoSoft/MIND-sub001/internal/storage"
	"github.com/GurgoSoft/MIND-sub001/internal/store/memory"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAgendas struct {
	*fakeRepo[types.Agenda, types.AgendaFilter]
	dependents map[string]int
}

func (r fakeAgendas) CountDependents(ctx context.Context, id string) (int, error) {
	return r.dependents[id], nil
}

func TestAgendaRequiresTypeAndGuardsDelete(t *testing.T) {
	ctx := context.Background()
	v := NewValidator()
	agendaTypes := NewLookupService(memory.NewLookupRepository(types.LookupAgendaTypes), nil, v)
	repo := fakeAgendas{
		fakeRepo:   newFakeRepo[types.Agenda, types.AgendaFilter](func(a *types.Agenda) *string { return &a.ID }),
		dependents: map[string]int{},
	}
	agendas := NewAgendaService(repo, agendaTypes, nil, v)

	_, err := agendas.Create(ctx, types.Agenda{SpecialistID: "s1", AgendaTypeID: "missing", Name: "Mornings"})
	assert.ErrorIs(t, err, ErrInvalidReference)

	at, err := agendaTypes.Create(ctx, types.Lookup{Code: "IN_PERSON", Name: "In person"})
	require.NoError(t, err)
	agenda, err := agendas.Create(ctx, types.Agenda{SpecialistID: "s1", AgendaTypeID: at.ID, Name: "Mornings", Active: true})
	require.NoError(t, err)

	repo.dependents[agenda.ID] = 1
	assert.ErrorIs(t, agendas.Delete(ctx, agenda.ID), ErrInUse)
	assert.ErrorIs(t, agendaTypes.Delete(ctx, "unknown"), ErrNotFound)

	days := NewAgendaDayService(
		newFakeRepo[types.AgendaDay, types.AgendaDayFilter](func(d *types.AgendaDay) *string { return &d.ID }),
		agendas, nil, v)
	_, err = days.Create(ctx, types.AgendaDay{AgendaID: agenda.ID, DayOfWeek: 1, StartTime: "12:00", EndTime: "08:00", SlotMinutes: 30})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_time", verr.Fields[0].Field)

	_, err = days.Create(ctx, types.AgendaDay{AgendaID: agenda.ID, DayOfWeek: 1, StartTime: "8h", EndTime: "12:00", SlotMinutes: 30})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_time", verr.Fields[0].Field)

	day, err := days.Create(ctx, types.AgendaDay{AgendaID: agenda.ID, DayOfWeek: 1, StartTime: "08:00", EndTime: "12:00", SlotMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, agenda.ID, day.AgendaID)

	_, err = days.Create(ctx, types.AgendaDay{AgendaID: "gone", DayOfWeek: 2, StartTime: "08:00", EndTime: "12:00", SlotMinutes: 30})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestSubscriptionCancelAndReactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	subs := NewSubscriptionService(
		newFakeRepo[types.Subscription, types.SubscriptionFilter](func(s *types.Subscription) *string { return &s.ID }),
		f.store.Users, f.recorder, f.validate)
	subs.now = func() time.Time { return f.now }

	_, err := subs.Create(ctx, types.Subscription{UserID: "ghost", Plan: "pro", Currency: "USD"})
	assert.ErrorIs(t, err, ErrInvalidReference)

	sub, err := subs.Create(ctx, types.Subscription{UserID: user.ID, Plan: "pro", Currency: "USD", PriceCents: 999})
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionActive, sub.Status)
	assert.True(t, sub.StartedAt.Equal(f.now))

	_, err = subs.Reactivate(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	cancelled, err := subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = subs.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	active, err := subs.Reactivate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionActive, active.Status)
	assert.Nil(t, active.CancelledAt)
}

type fakePayments struct {
	*fakeRepo[types.PaymentInfo, types.PaymentInfoFilter]
}

func (r fakePayments) GetByUser(ctx context.Context, userID string) (types.PaymentInfo, error) {
	items, _, _ := r.List(ctx, types.PaymentInfoFilter{}, types.Page{})
	for _, p := range items {
		if p.UserID == userID {
			return p, nil
		}
	}
	return r.GetByID(ctx, "")
}

func TestPaymentInfoOnePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	payments := NewPaymentInfoService(
		fakePayments{newFakeRepo[types.PaymentInfo, types.PaymentInfoFilter](func(p *types.PaymentInfo) *string { return &p.ID })},
		f.store.Users, f.recorder, f.validate)
	card := types.PaymentInfo{UserID: user.ID, HolderName: "Ana Gomez", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}

	first, err := payments.Create(ctx, card)
	require.NoError(t, err)
	_, err = payments.Create(ctx, card)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")

	updated, err := payments.Update(ctx, first.ID, func(p *types.PaymentInfo) error {
		p.Last4 = "1111"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1111", updated.Last4)
}

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestNotificationMarkSentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	mailer := &recordingMailer{}
	repo := fakeNotifications{newFakeRepo[types.Notification, types.NotificationFilter](func(n *types.Notification) *string { return &n.ID })}
	svc := NewNotificationService(repo, f.store.Users, mailer, f.recorder, f.validate, zap.NewNop())

	n, err := svc.Create(ctx, types.Notification{UserID: user.ID, Channel: "email", Subject: "Reminder", Body: "See you", Sent: true})
	require.NoError(t, err)
	assert.False(t, n.Sent)

	sent, err := svc.MarkSent(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, sent.Sent)
	_, err = svc.MarkSent(ctx, n.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, mailer.sent)

	_, err = svc.Create(ctx, types.Notification{UserID: user.ID, Channel: "fax", Subject: "x", Body: "y"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "channel", verr.Fields[0].Field)
}

func TestNotificationDispatchIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	mailer := &recordingMailer{err: errors.New("smtp down")}
	repo := fakeNotifications{newFakeRepo[types.Notification, types.NotificationFilter](func(n *types.Notification) *string { return &n.ID })}
	svc := NewNotificationService(repo, f.store.Users, mailer, f.recorder, f.validate, zap.NewNop())

	n, err := svc.Create(ctx, types.Notification{UserID: user.ID, Channel: "email", Subject: "Reminder", Body: "See you"})
	require.NoError(t, err)

	dispatched, err := svc.Dispatch(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, dispatched.Sent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.com", mailer.sent[0].To)

	_, err = svc.Dispatch(ctx, n.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordAttachments(t *testing.T) {
	appointments, _ := newAppointmentService(t)
	ctx := context.Background()
	a, err := appointments.Create(ctx, appointmentAt(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), time.Hour))
	require.NoError(t, err)

	repo := newFakeRepo[types.AppointmentRecord, types.AppointmentChildFilter](func(r *types.AppointmentRecord) *string { return &r.ID })
	records := NewRecordService(repo, appointments, storage.NewAttachments(storage.NewMemoryBackend()), nil, NewValidator())

	rec, err := records.Create(ctx, types.AppointmentRecord{
		AppointmentID: a.ID,
		Summary:       "Initial assessment",
		Attachments:   types.Attachments{{Key: "forged"}},
	})
	require.NoError(t, err)
	assert.Empty(t, rec.Attachments)

	rec, err = records.Attach(ctx, rec.ID, "scan.pdf", "application/pdf", strings.NewReader("%PDF"), 4)
	require.NoError(t, err)
	require.Len(t, rec.Attachments, 1)
	att := rec.Attachments[0]
	assert.Equal(t, "scan.pdf", att.Filename)

	rc, got, err := records.OpenAttachment(ctx, rec.ID, att.Key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, att.Key, got.Key)

	_, _, err = records.OpenAttachment(ctx, rec.ID, "records/"+rec.ID+"/unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	disabled := NewRecordService(repo, appointments, nil, nil, NewValidator())
	_, err = disabled.Attach(ctx, rec.ID, "x.txt", "", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, storage.ErrDisabled)
}
