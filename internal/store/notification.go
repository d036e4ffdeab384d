package store

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var notificationColumns = []string{
	"id", "user_id", "appointment_id", "channel", "subject", "body",
	"scheduled_at", "sent", "sent_at", "created_at", "updated_at",
}

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sqlx.DB
	t  table[types.Notification]
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{
		db: db,
		t: table[types.Notification]{
			db:      db,
			name:    "notifications",
			columns: notificationColumns,
			mutable: notificationColumns[1:9],
			order:   "created_at DESC, id",
		},
	}
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (types.Notification, error) {
	return r.t.get(ctx, id)
}

func (r *NotificationRepository) List(ctx context.Context, filter types.NotificationFilter, page types.Page) ([]types.Notification, int, error) {
	var w where
	w.eq("user_id", filter.UserID)
	w.eqBool("sent", filter.Sent)
	return r.t.list(ctx, w, page)
}

func (r *NotificationRepository) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if err := r.t.insert(ctx, n); err != nil {
		return types.Notification{}, err
	}
	return n, nil
}

func (r *NotificationRepository) Update(ctx context.Context, n types.Notification) (types.Notification, error) {
	n.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, n); err != nil {
		return types.Notification{}, err
	}
	return n, nil
}

// MarkSent flips sent only if it is still false. It returns ErrNotFound when
// no unsent notification with that id exists.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, now time.Time) (types.Notification, error) {
	query := `
		UPDATE notifications
		SET sent = TRUE, sent_at = $2, updated_at = $2
		WHERE id = $1 AND sent = FALSE
		RETURNING ` + joinColumns(notificationColumns)
	var n types.Notification
	if err := r.db.GetContext(ctx, &n, query, id, now); err != nil {
		return types.Notification{}, translate(err)
	}
	return n, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
