package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/mail"
	"github.com/GurgoSoft/MIND-sub001/internal/metrics"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
	"go.uber.org/zap"
)

type NotificationRepository interface {
	Repository[types.Notification, types.NotificationFilter]
	MarkSent(ctx context.Context, id string, now time.Time) (types.Notification, error)
}

// RecipientLookup resolves the user a notification is addressed to.
type RecipientLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

type NotificationService struct {
	repo       NotificationRepository
	crud       crud[types.Notification, types.NotificationFilter]
	recipients RecipientLookup
	mailer     mail.Mailer
	logger     *zap.Logger
	now        Clock
}

func NewNotificationService(repo NotificationRepository, recipients RecipientLookup, mailer mail.Mailer, recorder *audit.Recorder, v *Validator, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = mail.NoopMailer{}
	}
	s := &NotificationService{
		repo: repo,
		crud: newCRUD[types.Notification, types.NotificationFilter]("Notification", repo, recorder, v,
			func(n *types.Notification) *string { return &n.ID }),
		recipients: recipients,
		mailer:     mailer,
		logger:     logger,
	}
	s.crud.check = func(ctx context.Context, n *types.Notification) error {
		if recipients == nil {
			return nil
		}
		_, err := recipients.GetByID(ctx, n.UserID)
		return reference("user_id", err)
	}
	return s
}

func (s *NotificationService) Get(ctx context.Context, id string) (types.Notification, error) {
	return s.crud.get(ctx, id)
}

func (s *NotificationService) List(ctx context.Context, filter types.NotificationFilter, page types.Page) (types.List[types.Notification], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *NotificationService) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	n.Sent = false
	n.SentAt = nil
	return s.crud.create(ctx, n)
}

// Update leaves the sent state alone.
func (s *NotificationService) Update(ctx context.Context, id string, patch Patch[types.Notification]) (types.Notification, error) {
	return s.crud.update(ctx, id, func(n *types.Notification) error {
		sent, sentAt := n.Sent, n.SentAt
		if err := patch(n); err != nil {
			return err
		}
		n.Sent, n.SentAt = sent, sentAt
		return nil
	})
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// MarkSent flips the sent flag once. A second call fails with ErrInvalidState.
func (s *NotificationService) MarkSent(ctx context.Context, id string) (types.Notification, error) {
	before, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Notification{}, err
	}
	if before.Sent {
		return types.Notification{}, fmt.Errorf("notification already sent: %w", ErrInvalidState)
	}
	updated, err := s.repo.MarkSent(ctx, id, s.now.now())
	if errors.Is(err, store.ErrNotFound) {
		// Lost a race with another sender.
		return types.Notification{}, fmt.Errorf("notification already sent: %w", ErrInvalidState)
	}
	if err != nil {
		return types.Notification{}, err
	}
	s.crud.recorder.Updated(ctx, "Notification", id, before, updated)
	return updated, nil
}

// Dispatch delivers an email notification inline, then marks it sent. Mail
// failures are logged and do not prevent the notification being marked.
func (s *NotificationService) Dispatch(ctx context.Context, id string) (types.Notification, error) {
	n, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Notification{}, err
	}
	if n.Sent {
		return types.Notification{}, fmt.Errorf("notification already sent: %w", ErrInvalidState)
	}

	if n.Channel == "email" && s.recipients != nil {
		if err := s.deliver(ctx, n); err != nil {
			metrics.MailFailed("inline")
			s.logger.Warn("notification mail not sent", zap.String("notification_id", id), zap.Error(err))
		}
	} else {
		s.logger.Debug("no transport for channel, marking sent", zap.String("channel", n.Channel))
	}
	return s.MarkSent(ctx, id)
}

func (s *NotificationService) deliver(ctx context.Context, n types.Notification) error {
	user, err := s.recipients.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	return s.mailer.Send(ctx, mail.Message{To: user.Email, Subject: n.Subject, Body: n.Body})
}
