package store

import (
	"context"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var paymentInfoColumns = []string{
	"id", "user_id", "holder_name", "brand", "last4", "exp_month", "exp_year",
	"billing_email", "provider_customer_id", "created_at", "updated_at",
}

// PaymentInfoRepository handles persistence for payment profiles.
type PaymentInfoRepository struct {
	t table[types.PaymentInfo]
}

func NewPaymentInfoRepository(db *sqlx.DB) *PaymentInfoRepository {
	return &PaymentInfoRepository{t: table[types.PaymentInfo]{
		db:      db,
		name:    "payment_infos",
		columns: paymentInfoColumns,
		mutable: paymentInfoColumns[2:9],
		order:   "created_at DESC, id",
	}}
}

func (r *PaymentInfoRepository) GetByID(ctx context.Context, id string) (types.PaymentInfo, error) {
	return r.t.get(ctx, id)
}

func (r *PaymentInfoRepository) GetByUser(ctx context.Context, userID string) (types.PaymentInfo, error) {
	var w where
	w.add("user_id = ?", userID)
	return r.t.first(ctx, w)
}

func (r *PaymentInfoRepository) List(ctx context.Context, filter types.PaymentInfoFilter, page types.Page) ([]types.PaymentInfo, int, error) {
	var w where
	w.eq("user_id", filter.UserID)
	return r.t.list(ctx, w, page)
}

func (r *PaymentInfoRepository) Create(ctx context.Context, info types.PaymentInfo) (types.PaymentInfo, error) {
	now := time.Now().UTC()
	info.CreatedAt = now
	info.UpdatedAt = now
	if err := r.t.insert(ctx, info); err != nil {
		return types.PaymentInfo{}, err
	}
	return info, nil
}

func (r *PaymentInfoRepository) Update(ctx context.Context, info types.PaymentInfo) (types.PaymentInfo, error) {
	info.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, info); err != nil {
		return types.PaymentInfo{}, err
	}
	return info, nil
}

func (r *PaymentInfoRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

var subscriptionColumns = []string{
	"id", "user_id", "plan", "status", "price_cents", "currency",
	"started_at", "renews_at", "cancelled_at", "created_at", "updated_at",
}

// SubscriptionRepository handles persistence for subscriptions.
type SubscriptionRepository struct {
	t table[types.Subscription]
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{t: table[types.Subscription]{
		db:      db,
		name:    "subscriptions",
		columns: subscriptionColumns,
		mutable: subscriptionColumns[2:9],
		order:   "started_at DESC, id",
	}}
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (types.Subscription, error) {
	return r.t.get(ctx, id)
}

func (r *SubscriptionRepository) List(ctx context.Context, filter types.SubscriptionFilter, page types.Page) ([]types.Subscription, int, error) {
	var w where
	w.eq("user_id", filter.UserID)
	w.eq("status", filter.Status)
	return r.t.list(ctx, w, page)
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub types.Subscription) (types.Subscription, error) {
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if err := r.t.insert(ctx, sub); err != nil {
		return types.Subscription{}, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub types.Subscription) (types.Subscription, error) {
	sub.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, sub); err != nil {
		return types.Subscription{}, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
