package types

import "time"

// PaymentInfo holds the billing profile of a user. Card data is limited to
// what is safe to display.
type PaymentInfo struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id" validate:"required"`
	HolderName         string    `json:"holder_name" db:"holder_name" validate:"required,max=150"`
	Brand              string    `json:"brand" db:"brand" validate:"required,max=30"`
	Last4              string    `json:"last4" db:"last4" validate:"required,len=4,numeric"`
	ExpMonth           int       `json:"exp_month" db:"exp_month" validate:"min=1,max=12"`
	ExpYear            int       `json:"exp_year" db:"exp_year" validate:"min=2000,max=2100"`
	BillingEmail       *string   `json:"billing_email,omitempty" db:"billing_email" validate:"omitempty,email"`
	ProviderCustomerID *string   `json:"provider_customer_id,omitempty" db:"provider_customer_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

// Subscription is a paid plan held by a user.
type Subscription struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id" validate:"required"`
	Plan        string     `json:"plan" db:"plan" validate:"required,max=50"`
	Status      string     `json:"status" db:"status"`
	PriceCents  int64      `json:"price_cents" db:"price_cents" validate:"min=0"`
	Currency    string     `json:"currency" db:"currency" validate:"required,len=3"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	RenewsAt    *time.Time `json:"renews_at,omitempty" db:"renews_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
