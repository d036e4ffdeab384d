package types

import "time"

// Status codes mirrored by User.StatusID. They are derived from the user's
// flags and never set independently.
const (
	StatusCodeActive              = "ACTIVE"
	StatusCodeInactive            = "INACTIVE"
	StatusCodeLocked              = "LOCKED"
	StatusCodePendingVerification = "PENDING_VERIFICATION"
)

// StatusNames maps each derived status code to its display name, used when the
// lookup row has to be created on demand.
var StatusNames = map[string]string{
	StatusCodeActive:              "Active",
	StatusCodeInactive:            "Inactive",
	StatusCodeLocked:              "Locked",
	StatusCodePendingVerification: "Pending verification",
}

// Person is the identity anchor of a User. A person is identified by the
// (DocType, DocNumber) pair, which is unique across the system.
type Person struct {
	ID string `json:"id" db:"id"`

	FirstName string `json:"first_name" db:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" db:"last_name" validate:"required,max=100"`

	// DocType is the identity document kind (e.g. "CC", "TI", "PASSPORT").
	DocType string `json:"doc_type" db:"doc_type" validate:"required,max=20"`

	// DocNumber is the identity document number.
	DocNumber string `json:"doc_number" db:"doc_number" validate:"required,max=30"`

	BirthDate *time.Time `json:"birth_date,omitempty" db:"birth_date"`

	// Optional location references into the external geography catalog.
	CountryID    *string `json:"country_id,omitempty" db:"country_id"`
	DepartmentID *string `json:"department_id,omitempty" db:"department_id"`
	CityID       *string `json:"city_id,omitempty" db:"city_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User represents an account in the system.
// It references exactly one Person, one UserType and one Status row.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// PersonID references the Person this account belongs to. It never changes.
	PersonID string `json:"person_id" db:"person_id" validate:"required"`

	// UserTypeID references the user_types lookup row.
	UserTypeID string `json:"user_type_id" db:"user_type_id" validate:"required"`

	// StatusID references the statuses lookup row derived from the flags below.
	StatusID *string `json:"status_id,omitempty" db:"status_id"`

	// Email is the login identifier; unique across users.
	Email string `json:"email" db:"email" validate:"required,email,max=254"`

	// Phone is an optional contact number (digits only).
	Phone *string `json:"phone,omitempty" db:"phone" validate:"omitempty,numeric,min=7,max=15"`

	// PasswordHash stores bcrypt over the peppered HMAC of the password. Never exposed.
	PasswordHash string `json:"-" db:"password_hash"`

	// Active is false once the account is deactivated (soft delete).
	Active bool `json:"active" db:"active"`

	// Locked is set after too many consecutive failed logins.
	Locked bool `json:"locked" db:"locked"`

	// FailedAttempts counts consecutive failed logins since the last success or unlock.
	FailedAttempts int `json:"failed_attempts" db:"failed_attempts"`

	// LockedAt is when the account was locked, if it is.
	LockedAt *time.Time `json:"locked_at,omitempty" db:"locked_at"`

	// EmailVerified is set once a verification code has been accepted.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// VerificationCode is the pending 6-digit email code. Never exposed.
	VerificationCode *string `json:"-" db:"verification_code"`

	// VerificationExpiresAt bounds the validity of VerificationCode. Never exposed.
	VerificationExpiresAt *time.Time `json:"-" db:"verification_expires_at"`

	// VerificationAttempts counts wrong codes entered against the pending code.
	VerificationAttempts int `json:"-" db:"verification_attempts"`

	// LastAccessAt is stamped on every successful login.
	LastAccessAt *time.Time `json:"last_access_at,omitempty" db:"last_access_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Populated references.
	Person   *Person `json:"person,omitempty" db:"-"`
	UserType *Lookup `json:"user_type,omitempty" db:"-"`
	Status   *Lookup `json:"status,omitempty" db:"-"`
}

// DerivedStatus returns the status code implied by the account flags.
func (u User) DerivedStatus() string {
	switch {
	case !u.Active:
		return StatusCodeInactive
	case u.Locked:
		return StatusCodeLocked
	case !u.EmailVerified:
		return StatusCodePendingVerification
	default:
		return StatusCodeActive
	}
}
