package store

import (
	"context"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var userColumns = []string{
	"id", "person_id", "user_type_id", "status_id", "email", "phone", "password_hash",
	"active", "locked", "failed_attempts", "locked_at", "email_verified",
	"verification_code", "verification_expires_at", "verification_attempts", "last_access_at",
	"created_at", "updated_at",
}

// status_id is left out: it only changes through SetStatus.
var userMutableColumns = []string{
	"user_type_id", "email", "phone", "password_hash",
	"active", "locked", "failed_attempts", "locked_at", "email_verified",
	"verification_code", "verification_expires_at", "last_access_at",
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sqlx.DB
	t  table[types.User]
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{
		db: db,
		t: table[types.User]{
			db:      db,
			name:    "users",
			columns: userColumns,
			mutable: userMutableColumns,
			order:   "created_at DESC, id",
		},
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.t.get(ctx, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var w where
	w.add("email = ?", strings.ToLower(strings.TrimSpace(email)))
	return r.t.first(ctx, w)
}

func (r *UserRepository) ExistsByPerson(ctx context.Context, personID string) (bool, error) {
	var w where
	w.add("person_id = ?", personID)
	n, err := r.t.count(ctx, w)
	return n > 0, err
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter, page types.Page) ([]types.User, int, error) {
	var w where
	w.eq("user_type_id", filter.UserTypeID)
	w.eq("status_id", filter.StatusID)
	w.eq("email", strings.ToLower(filter.Email))
	w.eqBool("active", filter.Active)
	w.eqBool("locked", filter.Locked)
	return r.t.list(ctx, w, page)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := r.t.insert(ctx, user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = time.Now().UTC()
	if err := r.t.update(ctx, user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// RegisterFailedLogin increments the failure counter in a single statement and
// locks the account once the counter reaches maxFailed.
func (r *UserRepository) RegisterFailedLogin(ctx context.Context, id string, maxFailed int, now time.Time) (types.User, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
			locked = locked OR failed_attempts + 1 >= $2,
			locked_at = CASE
				WHEN NOT locked AND failed_attempts + 1 >= $2 THEN $3
				ELSE locked_at
			END,
			updated_at = $3
		WHERE id = $1
		RETURNING ` + joinColumns(userColumns)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, id, maxFailed, now); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// RecordLogin resets the failure counter and stamps the access time.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, now time.Time) error {
	const query = `
		UPDATE users
		SET failed_attempts = 0,
			last_access_at = $2,
			updated_at = $2
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

// SetVerificationCode stores a fresh email code and resets its attempt counter.
func (r *UserRepository) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET verification_code = $2,
			verification_expires_at = $3,
			verification_attempts = 0,
			updated_at = NOW()
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, code, expiresAt)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

// RegisterFailedVerification counts a wrong email code and discards the code
// once maxAttempts is reached. It returns the new attempt count.
func (r *UserRepository) RegisterFailedVerification(ctx context.Context, id string, maxAttempts int) (int, error) {
	const query = `
		UPDATE users
		SET verification_attempts = verification_attempts + 1,
			verification_code = CASE
				WHEN verification_attempts + 1 >= $2 THEN NULL
				ELSE verification_code
			END,
			verification_expires_at = CASE
				WHEN verification_attempts + 1 >= $2 THEN NULL
				ELSE verification_expires_at
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING verification_attempts`
	var attempts int
	if err := r.db.GetContext(ctx, &attempts, query, id, maxAttempts); err != nil {
		return 0, translate(err)
	}
	return attempts, nil
}

// ConsumeVerificationCode marks the email verified and activates the account,
// provided code is still the pending one.
func (r *UserRepository) ConsumeVerificationCode(ctx context.Context, id, code string) (types.User, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE,
			active = TRUE,
			verification_code = NULL,
			verification_expires_at = NULL,
			verification_attempts = 0,
			updated_at = NOW()
		WHERE id = $1 AND verification_code = $2
		RETURNING ` + joinColumns(userColumns)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, id, code); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// SetPasswordHash replaces the stored hash only.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

// SetStatus writes the derived status reference.
func (r *UserRepository) SetStatus(ctx context.Context, id, statusID string) error {
	const query = `UPDATE users SET status_id = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, statusID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
