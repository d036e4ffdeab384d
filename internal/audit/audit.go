package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/metrics"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// SystemActor is the default actor recorded when no authenticated user is
// attached to the request.
const SystemActor = "system"

const defaultWriteTimeout = 3 * time.Second

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, record types.AuditRecord) error
}

// Store is a Sink that can also be queried and pruned.
type Store interface {
	Sink
	Query(ctx context.Context, filter types.AuditFilter, page types.Page) ([]types.AuditRecord, int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder writes audit records on a best-effort basis: failures are logged
// and counted, never returned to the caller.
type Recorder struct {
	domain  types.AuditDomain
	sink    Sink
	logger  *zap.Logger
	system  string
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(domain types.AuditDomain, sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		domain:  domain,
		sink:    sink,
		logger:  logger,
		system:  SystemActor,
		timeout: defaultWriteTimeout,
		now:     time.Now,
	}
}

// WithSystemActor sets the actor recorded for unauthenticated requests.
// An empty id keeps SystemActor.
func (r *Recorder) WithSystemActor(id string) *Recorder {
	if id != "" {
		r.system = id
	}
	return r
}

// Record snapshots before/after and writes one record. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, entity, entityID string, action types.AuditAction, before, after any) {
	if r == nil || r.sink == nil {
		return
	}

	meta := MetaFrom(ctx)
	record := types.AuditRecord{
		ID:        ksuid.New().String(),
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		ActorID:   meta.ActorID,
		CreatedAt: r.now().UTC(),
	}
	if record.ActorID == "" {
		record.ActorID = r.system
	}
	if meta.IP != "" {
		record.IP = &meta.IP
	}
	if meta.UserAgent != "" {
		record.UserAgent = &meta.UserAgent
	}

	var err error
	if record.Before, err = snapshot(before); err == nil {
		record.After, err = snapshot(after)
	}
	if err == nil {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		err = r.sink.Write(writeCtx, record)
		cancel()
	}
	if err != nil {
		metrics.AuditWriteFailed(string(r.domain))
		r.logger.Warn("audit write failed",
			zap.String("domain", string(r.domain)),
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func (r *Recorder) Created(ctx context.Context, entity, entityID string, after any) {
	r.Record(ctx, entity, entityID, types.AuditCreate, nil, after)
}

func (r *Recorder) Updated(ctx context.Context, entity, entityID string, before, after any) {
	r.Record(ctx, entity, entityID, types.AuditUpdate, before, after)
}

func (r *Recorder) Deleted(ctx context.Context, entity, entityID string, before any) {
	r.Record(ctx, entity, entityID, types.AuditDelete, before, nil)
}

// Login records a successful login; the user is the actor.
func (r *Recorder) Login(ctx context.Context, userID string) {
	r.Record(WithActor(ctx, userID), "User", userID, types.AuditLogin, nil, nil)
}

func (r *Recorder) Logout(ctx context.Context, userID string) {
	r.Record(WithActor(ctx, userID), "User", userID, types.AuditLogout, nil, nil)
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return b, nil
}

// Retention bounds (days) accepted by Cleanup, per domain.
var retentionBounds = map[types.AuditDomain][2]int{
	types.AuditDomainUsers:  {1, 365},
	types.AuditDomainAgenda: {1, 3650},
	types.AuditDomainDiary:  {1, 3650},
}

// ErrRetentionOutOfRange is returned by Cleanup for days outside the domain's bounds.
var ErrRetentionOutOfRange = errors.New("retention days out of range")

// Log exposes the query and retention surface of one domain's audit store.
type Log struct {
	domain types.AuditDomain
	store  Store
	now    func() time.Time
}

func NewLog(domain types.AuditDomain, store Store) *Log {
	return &Log{domain: domain, store: store, now: time.Now}
}

func (l *Log) Domain() types.AuditDomain {
	return l.domain
}

// Query returns records newest first.
func (l *Log) Query(ctx context.Context, filter types.AuditFilter, page types.Page) (types.List[types.AuditRecord], error) {
	items, total, err := l.store.Query(ctx, filter, page)
	if err != nil {
		return types.List[types.AuditRecord]{}, err
	}
	return types.NewList(items, page, total), nil
}

// Cleanup deletes records older than days and returns how many were removed.
func (l *Log) Cleanup(ctx context.Context, days int) (int64, error) {
	bounds, ok := retentionBounds[l.domain]
	if !ok {
		return 0, fmt.Errorf("unknown audit domain %q", l.domain)
	}
	if days < bounds[0] || days > bounds[1] {
		return 0, fmt.Errorf("%w: %s accepts %d-%d days, got %d", ErrRetentionOutOfRange, l.domain, bounds[0], bounds[1], days)
	}
	cutoff := l.now().UTC().AddDate(0, 0, -days)
	return l.store.DeleteBefore(ctx, cutoff)
}

// RetentionBounds returns the accepted [min, max] days for domain.
func RetentionBounds(domain types.AuditDomain) (int, int) {
	b := retentionBounds[domain]
	return b[0], b[1]
}
