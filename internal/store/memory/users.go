package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type PersonRepository struct {
	mu   sync.RWMutex
	byID map[string]types.Person
}

func NewPersonRepository() *PersonRepository {
	return &PersonRepository{byID: make(map[string]types.Person)}
}

func (r *PersonRepository) GetByID(ctx context.Context, id string) (types.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return types.Person{}, store.ErrNotFound
	}
	return p, nil
}

func (r *PersonRepository) GetByDocument(ctx context.Context, docType, docNumber string) (types.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if p.DocType == docType && p.DocNumber == docNumber {
			return p, nil
		}
	}
	return types.Person{}, store.ErrNotFound
}

func (r *PersonRepository) List(ctx context.Context, filter types.PersonFilter, page types.Page) ([]types.Person, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := strings.ToLower(filter.Name)
	out := make([]types.Person, 0)
	for _, p := range r.byID {
		if filter.DocType != "" && p.DocType != filter.DocType {
			continue
		}
		if filter.DocNumber != "" && p.DocNumber != filter.DocNumber {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), name) {
			continue
		}
		out = append(out, p)
	}
	items, total := paginate(out, page, func(a, b types.Person) bool {
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.ID < b.ID
	})
	return items, total, nil
}

func (r *PersonRepository) Create(ctx context.Context, p types.Person) (types.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkDocument(p); err != nil {
		return types.Person{}, err
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.byID[p.ID] = p
	return p, nil
}

func (r *PersonRepository) Update(ctx context.Context, p types.Person) (types.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return types.Person{}, store.ErrNotFound
	}
	if err := r.checkDocument(p); err != nil {
		return types.Person{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	r.byID[p.ID] = p
	return p, nil
}

func (r *PersonRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *PersonRepository) checkDocument(p types.Person) error {
	for _, existing := range r.byID {
		if existing.ID != p.ID && existing.DocType == p.DocType && existing.DocNumber == p.DocNumber {
			return &store.DuplicateError{Table: "persons", Field: "document"}
		}
	}
	return nil
}

type UserRepository struct {
	mu   sync.RWMutex
	byID map[string]types.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[string]types.User)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) ExistsByPerson(ctx context.Context, personID string) (bool, error) {
	return r.count(func(u types.User) bool { return u.PersonID == personID }) > 0, nil
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter, page types.Page) ([]types.User, int, error) {
	r.mu.RLock()
	out := make([]types.User, 0)
	for _, u := range r.byID {
		if filter.UserTypeID != "" && u.UserTypeID != filter.UserTypeID {
			continue
		}
		if filter.StatusID != "" && (u.StatusID == nil || *u.StatusID != filter.StatusID) {
			continue
		}
		if filter.Email != "" && u.Email != strings.ToLower(filter.Email) {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		if filter.Locked != nil && u.Locked != *filter.Locked {
			continue
		}
		out = append(out, u)
	}
	r.mu.RUnlock()

	items, total := paginate(out, page, func(a, b types.User) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items, total, nil
}

func (r *UserRepository) Create(ctx context.Context, u types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := r.checkUnique(u); err != nil {
		return types.User{}, err
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.byID[u.ID] = u
	return u, nil
}

// Update keeps the stored status reference; it only changes through SetStatus.
func (r *UserRepository) Update(ctx context.Context, u types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[u.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := r.checkUnique(u); err != nil {
		return types.User{}, err
	}
	u.PersonID = existing.PersonID
	u.StatusID = existing.StatusID
	u.VerificationAttempts = existing.VerificationAttempts
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.byID[u.ID] = u
	return u, nil
}

func (r *UserRepository) RegisterFailedLogin(ctx context.Context, id string, maxFailed int, now time.Time) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	u.FailedAttempts++
	if !u.Locked && u.FailedAttempts >= maxFailed {
		u.Locked = true
		lockedAt := now
		u.LockedAt = &lockedAt
	}
	u.UpdatedAt = now
	r.byID[id] = u
	return u, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.FailedAttempts = 0
	u.LastAccessAt = &now
	u.UpdatedAt = now
	r.byID[id] = u
	return nil
}

func (r *UserRepository) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	return r.mutate(id, func(u *types.User) {
		u.VerificationCode = &code
		u.VerificationExpiresAt = &expiresAt
		u.VerificationAttempts = 0
	})
}

func (r *UserRepository) RegisterFailedVerification(ctx context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := r.mutate(id, func(u *types.User) {
		u.VerificationAttempts++
		if u.VerificationAttempts >= maxAttempts {
			u.VerificationCode = nil
			u.VerificationExpiresAt = nil
		}
		attempts = u.VerificationAttempts
	})
	return attempts, err
}

func (r *UserRepository) ConsumeVerificationCode(ctx context.Context, id, code string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || u.VerificationCode == nil || *u.VerificationCode != code {
		return types.User{}, store.ErrNotFound
	}
	u.EmailVerified = true
	u.Active = true
	u.VerificationCode = nil
	u.VerificationExpiresAt = nil
	u.VerificationAttempts = 0
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.mutate(id, func(u *types.User) { u.PasswordHash = hash })
}

func (r *UserRepository) mutate(id string, apply func(u *types.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	apply(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}

func (r *UserRepository) SetStatus(ctx context.Context, id, statusID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.StatusID = &statusID
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *UserRepository) count(match func(types.User) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.byID {
		if match(u) {
			n++
		}
	}
	return n
}

func (r *UserRepository) checkUnique(u types.User) error {
	for _, existing := range r.byID {
		if existing.ID == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return &store.DuplicateError{Table: "users", Field: "email"}
		}
		if existing.PersonID == u.PersonID {
			return &store.DuplicateError{Table: "users", Field: "person_id"}
		}
	}
	return nil
}
