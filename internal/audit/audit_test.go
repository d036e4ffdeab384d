package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingSink struct{ calls int }

func (s *failingSink) Write(ctx context.Context, record types.AuditRecord) error {
	s.calls++
	return errors.New("disk full")
}

type ctxSink struct{ err error }

func (s *ctxSink) Write(ctx context.Context, record types.AuditRecord) error {
	s.err = ctx.Err()
	return nil
}

func TestRecorderUsesRequestMeta(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(types.AuditDomainUsers, store, zap.NewNop())

	ctx := WithMeta(context.Background(), Meta{IP: "10.0.0.1", UserAgent: "curl/8"})
	ctx = WithActor(ctx, "admin-1")
	rec.Updated(ctx, "Person", "p1", map[string]string{"first_name": "Ana"}, map[string]string{"first_name": "Ana María"})

	records := store.Records()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "admin-1", r.ActorID)
	assert.Equal(t, types.AuditUpdate, r.Action)
	require.NotNil(t, r.IP)
	assert.Equal(t, "10.0.0.1", *r.IP)
	assert.JSONEq(t, `{"first_name":"Ana"}`, string(r.Before))
	assert.JSONEq(t, `{"first_name":"Ana María"}`, string(r.After))
	assert.NotEmpty(t, r.ID)
}

func TestRecorderFallsBackToSystemActor(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(types.AuditDomainDiary, store, nil)

	rec.Created(context.Background(), "DiaryEntry", "d1", map[string]int{"mood_score": 4})

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, SystemActor, records[0].ActorID)
	assert.Nil(t, records[0].Before)
}

func TestRecorderUsesConfiguredSystemActor(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(types.AuditDomainUsers, store, nil).WithSystemActor("00000000-0000-0000-0000-000000000001")

	rec.Created(context.Background(), "Person", "p1", nil)
	rec.Created(WithActor(context.Background(), "u1"), "Person", "p2", nil)

	records := store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", records[0].ActorID)
	assert.Equal(t, "u1", records[1].ActorID)

	assert.Equal(t, SystemActor, NewRecorder(types.AuditDomainUsers, store, nil).WithSystemActor("").system)
}

func TestRecorderSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &failingSink{}
	rec := NewRecorder(types.AuditDomainAgenda, sink, zap.New(core))

	assert.NotPanics(t, func() {
		rec.Deleted(context.Background(), "Agenda", "a1", map[string]string{"name": "x"})
		rec.Created(context.Background(), "Agenda", "a2", make(chan int))
	})
	assert.Equal(t, 1, sink.calls, "unmarshalable snapshot never reaches the sink")
	assert.Equal(t, 2, logs.FilterMessage("audit write failed").Len())
}

func TestRecorderDetachesFromRequestCancellation(t *testing.T) {
	sink := &ctxSink{}
	rec := NewRecorder(types.AuditDomainUsers, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Logout(ctx, "u1")

	assert.NoError(t, sink.err)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() { rec.Login(context.Background(), "u1") })
}

func TestCleanupBounds(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(context.Background(), types.AuditRecord{ID: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.Write(context.Background(), types.AuditRecord{ID: "new", CreatedAt: now.AddDate(0, 0, -5)}))

	log := NewLog(types.AuditDomainUsers, store)
	log.now = func() time.Time { return now }

	_, err := log.Cleanup(context.Background(), 0)
	assert.ErrorIs(t, err, ErrRetentionOutOfRange)
	_, err = log.Cleanup(context.Background(), 366)
	assert.ErrorIs(t, err, ErrRetentionOutOfRange)

	removed, err := log.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	diary := NewLog(types.AuditDomainDiary, store)
	_, err = diary.Cleanup(context.Background(), 3650)
	assert.NoError(t, err)
}

func TestQueryNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []types.AuditAction{types.AuditCreate, types.AuditUpdate, types.AuditUpdate} {
		require.NoError(t, store.Write(context.Background(), types.AuditRecord{
			ID: string(rune('a' + i)), Entity: "User", EntityID: "u1", Action: action, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := NewLog(types.AuditDomainUsers, store).Query(context.Background(),
		types.AuditFilter{EntityID: "u1", Action: types.AuditUpdate}, types.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "c", list.Items[0].ID)
	assert.Equal(t, "b", list.Items[1].ID)
}

func TestPostgresStoreWrite(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s, err := NewPostgresStore(sqlx.NewDb(conn, "postgres"), types.AuditDomainAgenda)
	require.NoError(t, err)

	created := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO agenda_audit_logs`).
		WithArgs("k1", "Appointment", "a1", "CREATE", "system", nil, `{"status":"scheduled"}`, nil, nil, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Write(context.Background(), types.AuditRecord{
		ID: "k1", Entity: "Appointment", EntityID: "a1", Action: types.AuditCreate, ActorID: "system",
		After: json.RawMessage(`{"status":"scheduled"}`), CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRejectsUnknownDomain(t *testing.T) {
	_, err := NewPostgresStore(nil, types.AuditDomain("billing"))
	assert.Error(t, err)
}

func TestDocumentConversion(t *testing.T) {
	doc := toDocument(json.RawMessage(`{"name":"Ana","tags":["a"]}`))
	assert.Equal(t, "Ana", doc["name"])
	assert.JSONEq(t, `{"name":"Ana","tags":["a"]}`, string(fromDocument(doc)))

	assert.Nil(t, toDocument(nil))
	assert.Equal(t, "[1,2]", toDocument(json.RawMessage(`[1,2]`))["raw"])
}
