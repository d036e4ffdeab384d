package services

import (
	"context"
	"fmt"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type PaymentInfoRepository interface {
	Repository[types.PaymentInfo, types.PaymentInfoFilter]
	GetByUser(ctx context.Context, userID string) (types.PaymentInfo, error)
}

// PaymentInfoService keeps at most one billing profile per user.
type PaymentInfoService struct {
	crud crud[types.PaymentInfo, types.PaymentInfoFilter]
}

func NewPaymentInfoService(repo PaymentInfoRepository, users UserRepository, recorder *audit.Recorder, v *Validator) *PaymentInfoService {
	s := &PaymentInfoService{
		crud: newCRUD[types.PaymentInfo, types.PaymentInfoFilter]("PaymentInfo", repo, recorder, v,
			func(p *types.PaymentInfo) *string { return &p.ID }),
	}
	s.crud.check = func(ctx context.Context, p *types.PaymentInfo) error {
		if _, err := users.GetByID(ctx, p.UserID); err != nil {
			return reference("user_id", err)
		}
		existing, err := repo.GetByUser(ctx, p.UserID)
		if err == nil && existing.ID != p.ID {
			return &store.DuplicateError{Table: "payment_infos", Field: "user_id"}
		}
		if err != nil && !isNotFound(err) {
			return err
		}
		return nil
	}
	return s
}

func (s *PaymentInfoService) Get(ctx context.Context, id string) (types.PaymentInfo, error) {
	return s.crud.get(ctx, id)
}

func (s *PaymentInfoService) List(ctx context.Context, filter types.PaymentInfoFilter, page types.Page) (types.List[types.PaymentInfo], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *PaymentInfoService) Create(ctx context.Context, p types.PaymentInfo) (types.PaymentInfo, error) {
	return s.crud.create(ctx, p)
}

func (s *PaymentInfoService) Update(ctx context.Context, id string, patch Patch[types.PaymentInfo]) (types.PaymentInfo, error) {
	return s.crud.update(ctx, id, patch)
}

func (s *PaymentInfoService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

type SubscriptionRepository = Repository[types.Subscription, types.SubscriptionFilter]

type SubscriptionService struct {
	crud crud[types.Subscription, types.SubscriptionFilter]
	now  Clock
}

func NewSubscriptionService(repo SubscriptionRepository, users UserRepository, recorder *audit.Recorder, v *Validator) *SubscriptionService {
	s := &SubscriptionService{
		crud: newCRUD(
			"Subscription", repo, recorder, v, func(sub *types.Subscription) *string { return &sub.ID }),
	}
	s.crud.check = func(ctx context.Context, sub *types.Subscription) error {
		if _, err := users.GetByID(ctx, sub.UserID); err != nil {
			return reference("user_id", err)
		}
		return nil
	}
	return s
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (types.Subscription, error) {
	return s.crud.get(ctx, id)
}

func (s *SubscriptionService) List(ctx context.Context, filter types.SubscriptionFilter, page types.Page) (types.List[types.Subscription], error) {
	return s.crud.list(ctx, filter, page)
}

// Create starts an active subscription.
func (s *SubscriptionService) Create(ctx context.Context, sub types.Subscription) (types.Subscription, error) {
	sub.Status = types.SubscriptionActive
	sub.CancelledAt = nil
	if sub.StartedAt.IsZero() {
		sub.StartedAt = s.now.now()
	}
	return s.crud.create(ctx, sub)
}

// Update cannot change the status; use Cancel and Reactivate.
func (s *SubscriptionService) Update(ctx context.Context, id string, patch Patch[types.Subscription]) (types.Subscription, error) {
	return s.crud.update(ctx, id, func(sub *types.Subscription) error {
		status, cancelledAt := sub.Status, sub.CancelledAt
		if err := patch(sub); err != nil {
			return err
		}
		sub.Status, sub.CancelledAt = status, cancelledAt
		return nil
	})
}

func (s *SubscriptionService) Cancel(ctx context.Context, id string) (types.Subscription, error) {
	before, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Subscription{}, err
	}
	if before.Status == types.SubscriptionCancelled {
		return types.Subscription{}, fmt.Errorf("subscription already cancelled: %w", ErrInvalidState)
	}
	sub := before
	now := s.now.now()
	sub.Status = types.SubscriptionCancelled
	sub.CancelledAt = &now
	return s.crud.save(ctx, before, sub)
}

func (s *SubscriptionService) Reactivate(ctx context.Context, id string) (types.Subscription, error) {
	before, err := s.crud.get(ctx, id)
	if err != nil {
		return types.Subscription{}, err
	}
	if before.Status != types.SubscriptionCancelled {
		return types.Subscription{}, fmt.Errorf("subscription is not cancelled: %w", ErrInvalidState)
	}
	sub := before
	sub.Status = types.SubscriptionActive
	sub.CancelledAt = nil
	return s.crud.save(ctx, before, sub)
}

func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}
