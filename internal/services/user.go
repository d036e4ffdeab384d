package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
	"go.uber.org/zap"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Repository[types.User, types.UserFilter]
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByPerson(ctx context.Context, personID string) (bool, error)
	RegisterFailedLogin(ctx context.Context, id string, maxFailed int, now time.Time) (types.User, error)
	RecordLogin(ctx context.Context, id string, now time.Time) error
	SetStatus(ctx context.Context, id, statusID string) error
	SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error
	RegisterFailedVerification(ctx context.Context, id string, maxAttempts int) (int, error)
	ConsumeVerificationCode(ctx context.Context, id, code string) (types.User, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

type PersonRepository interface {
	Repository[types.Person, types.PersonFilter]
	GetByDocument(ctx context.Context, docType, docNumber string) (types.Person, error)
}

// UserService manages accounts. It is the only writer of users.status_id.
type UserService struct {
	repo      UserRepository
	persons   PersonRepository
	userTypes *LookupService
	statuses  *LookupService
	recorder  *audit.Recorder
	validate  *Validator
	logger    *zap.Logger
}

func NewUserService(repo UserRepository, persons PersonRepository, userTypes, statuses *LookupService, recorder *audit.Recorder, v *Validator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:      repo,
		persons:   persons,
		userTypes: userTypes,
		statuses:  statuses,
		recorder:  recorder,
		validate:  v,
		logger:    logger,
	}
}

// Get returns the user with person, type and status populated.
func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, translate("User", err)
	}
	if person, err := s.persons.GetByID(ctx, user.PersonID); err == nil {
		user.Person = &person
	}
	if userType, err := s.userTypes.Get(ctx, user.UserTypeID); err == nil {
		user.UserType = &userType
	}
	if user.StatusID != nil {
		if status, err := s.statuses.Get(ctx, *user.StatusID); err == nil {
			user.Status = &status
		}
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, filter types.UserFilter, page types.Page) (types.List[types.User], error) {
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.List[types.User]{}, err
	}
	return types.NewList(items, page, total), nil
}

// Update applies an admin edit. Only user type, email, phone and the active
// flag can change here; credentials and lock state have their own flows.
func (s *UserService) Update(ctx context.Context, id string, patch Patch[types.User]) (types.User, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, translate("User", err)
	}
	row := before
	if err := patch(&row); err != nil {
		return types.User{}, err
	}

	user := before
	user.UserTypeID = row.UserTypeID
	user.Email = row.Email
	user.Phone = row.Phone
	user.Active = row.Active

	if err := s.validate.Struct(user); err != nil {
		return types.User{}, err
	}
	if user.UserTypeID != before.UserTypeID {
		if err := s.userTypes.Exists(ctx, "user_type_id", user.UserTypeID); err != nil {
			return types.User{}, err
		}
	}
	return s.save(ctx, before, user)
}

// ToggleActive flips the active flag.
func (s *UserService) ToggleActive(ctx context.Context, id string) (types.User, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, translate("User", err)
	}
	user := before
	user.Active = !before.Active
	return s.save(ctx, before, user)
}

// Delete deactivates the account; users are never removed.
func (s *UserService) Delete(ctx context.Context, id string) error {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return translate("User", err)
	}
	user := before
	user.Active = false
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return translate("User", err)
	}
	if err := s.syncStatus(ctx, &updated); err != nil {
		return err
	}
	s.recorder.Deleted(ctx, "User", id, before)
	return nil
}

// save persists user, re-derives its status and records the change.
func (s *UserService) save(ctx context.Context, before, user types.User) (types.User, error) {
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, translate("User", err)
	}
	if err := s.syncStatus(ctx, &updated); err != nil {
		return types.User{}, err
	}
	s.recorder.Updated(ctx, "User", updated.ID, before, updated)
	return updated, nil
}

// statusFor returns the statuses row matching the user's flags.
func (s *UserService) statusFor(ctx context.Context, user types.User) (types.Lookup, error) {
	code := user.DerivedStatus()
	status, err := s.statuses.GetOrCreate(ctx, code, types.StatusNames[code])
	if err != nil {
		return types.Lookup{}, fmt.Errorf("resolve status %s: %w", code, err)
	}
	return status, nil
}

// syncStatus points status_id at the status derived from the user's flags.
func (s *UserService) syncStatus(ctx context.Context, user *types.User) error {
	status, err := s.statusFor(ctx, *user)
	if err != nil {
		return err
	}
	if user.StatusID != nil && *user.StatusID == status.ID {
		return nil
	}
	if err := s.repo.SetStatus(ctx, user.ID, status.ID); err != nil {
		return translate("User", err)
	}
	user.StatusID = &status.ID
	return nil
}

// PersonService manages identity records.
type PersonService struct {
	crud crud[types.Person, types.PersonFilter]
}

func NewPersonService(repo PersonRepository, users UserRepository, recorder *audit.Recorder, v *Validator) *PersonService {
	s := &PersonService{
		crud: newCRUD[types.Person, types.PersonFilter]("Person", repo, recorder, v,
			func(p *types.Person) *string { return &p.ID }),
	}
	s.crud.guard = func(ctx context.Context, p types.Person) error {
		inUse, err := users.ExistsByPerson(ctx, p.ID)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("person has a user account: %w", ErrInUse)
		}
		return nil
	}
	return s
}

func (s *PersonService) Get(ctx context.Context, id string) (types.Person, error) {
	return s.crud.get(ctx, id)
}

func (s *PersonService) List(ctx context.Context, filter types.PersonFilter, page types.Page) (types.List[types.Person], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *PersonService) Create(ctx context.Context, p types.Person) (types.Person, error) {
	return s.crud.create(ctx, p)
}

func (s *PersonService) Update(ctx context.Context, id string, patch Patch[types.Person]) (types.Person, error) {
	return s.crud.update(ctx, id, patch)
}

// Delete is rejected while a user references the person.
func (s *PersonService) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
