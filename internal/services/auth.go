package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/auth"
	"github.com/GurgoSoft/MIND-sub001/internal/mail"
	"github.com/GurgoSoft/MIND-sub001/internal/metrics"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthSettings are the account policy knobs taken from config.
type AuthSettings struct {
	MaxFailed int
	// MaxCodeAttempts bounds wrong guesses against one verification code.
	MaxCodeAttempts int
	CodeTTL         time.Duration
	UserTypeCode    string
	UserTypeName    string
	// AdminTypeCode is the user type code granted administration rights.
	AdminTypeCode string
	// ExposeCode returns verification codes to the caller (non-production).
	ExposeCode bool
}

const adminTypeName = "Administrator"

type AuthDeps struct {
	Users     *UserService
	Persons   PersonRepository
	UserTypes *LookupService
	Hasher    auth.Hasher
	Tokens    *auth.TokenManager
	Mailer    mail.Mailer
	Recorder  *audit.Recorder
	Validator *Validator
	Logger    *zap.Logger
	Settings  AuthSettings
}

// AuthService implements registration, login and email verification.
type AuthService struct {
	users     *UserService
	persons   PersonRepository
	userTypes *LookupService
	hasher    auth.Hasher
	tokens    *auth.TokenManager
	mailer    mail.Mailer
	recorder  *audit.Recorder
	validate  *Validator
	logger    *zap.Logger
	settings  AuthSettings

	now   Clock
	newID func() string
}

func NewAuthService(deps AuthDeps) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = mail.NoopMailer{}
	}
	settings := deps.Settings
	if settings.MaxFailed <= 0 {
		settings.MaxFailed = 5
	}
	if settings.MaxCodeAttempts <= 0 {
		settings.MaxCodeAttempts = 5
	}
	if settings.CodeTTL <= 0 {
		settings.CodeTTL = 15 * time.Minute
	}
	return &AuthService{
		users:     deps.Users,
		persons:   deps.Persons,
		userTypes: deps.UserTypes,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		mailer:    mailer,
		recorder:  deps.Recorder,
		validate:  deps.Validator,
		logger:    logger,
		settings:  settings,
		newID:     uuid.NewString,
	}
}

type RegisterRequest struct {
	FirstName string     `json:"first_name" validate:"required,max=100"`
	LastName  string     `json:"last_name" validate:"required,max=100"`
	DocType   string     `json:"doc_type" validate:"required,max=20"`
	DocNumber string     `json:"doc_number" validate:"required,max=30"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Email     string     `json:"email" validate:"required,email,max=254"`
	Password  string     `json:"password" validate:"required,min=8,max=64"`
	// Phone is checked with the user record.
	Phone *string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=64"`
}

// Session is returned by every flow that signs the user in.
type Session struct {
	Token     string     `json:"token"`
	ExpiresIn int64      `json:"expires_in"`
	User      types.User `json:"user"`
}

func (s *AuthService) session(user types.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresIn: int64(s.tokens.TTL().Seconds()), User: user}, nil
}

// Register creates a Person and its User. A failure after the person insert
// removes the person again.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return Session{}, err
	}

	if _, err := s.users.repo.GetByEmail(ctx, req.Email); err == nil {
		return Session{}, ErrDuplicateEmail
	} else if !isNotFound(err) {
		return Session{}, err
	}
	if _, err := s.persons.GetByDocument(ctx, req.DocType, req.DocNumber); err == nil {
		return Session{}, ErrDuplicateDocument
	} else if !isNotFound(err) {
		return Session{}, err
	}

	userType, err := s.userTypes.GetOrCreate(ctx, s.settings.UserTypeCode, s.settings.UserTypeName)
	if err != nil {
		return Session{}, err
	}
	user := types.User{
		ID:         s.newID(),
		UserTypeID: userType.ID,
		Email:      req.Email,
		Phone:      req.Phone,
		Active:     true,
	}
	status, err := s.users.statusFor(ctx, user)
	if err != nil {
		return Session{}, err
	}
	user.StatusID = &status.ID

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Session{}, err
	}
	user.PasswordHash = hash

	person, err := s.persons.Create(ctx, types.Person{
		ID:        s.newID(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		DocType:   req.DocType,
		DocNumber: req.DocNumber,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		return Session{}, translate("Person", err)
	}

	user.PersonID = person.ID
	created, sess, err := s.createUser(ctx, user)
	if err != nil {
		s.removePerson(ctx, person.ID)
		return Session{}, err
	}

	s.recorder.Created(ctx, "Person", person.ID, person)
	s.recorder.Created(ctx, "User", created.ID, created)
	return sess, nil
}

func (s *AuthService) createUser(ctx context.Context, user types.User) (types.User, Session, error) {
	if err := s.validate.Struct(user); err != nil {
		return types.User{}, Session{}, err
	}
	sess, err := s.session(user)
	if err != nil {
		return types.User{}, Session{}, err
	}
	created, err := s.users.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, Session{}, translate("User", err)
	}
	sess.User = created
	return created, sess, nil
}

func (s *AuthService) removePerson(ctx context.Context, personID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.persons.Delete(ctx, personID); err != nil {
		s.logger.Error("failed to remove person after registration error",
			zap.String("person_id", personID), zap.Error(err))
	}
}

// Login checks, in order: existence, active, locked, password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return Session{}, err
	}

	user, err := s.users.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if isNotFound(err) {
			metrics.LoginAttempt("unknown")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !user.Active {
		metrics.LoginAttempt("inactive")
		return Session{}, ErrAccountInactive
	}
	if user.Locked {
		metrics.LoginAttempt("locked")
		return Session{}, ErrAccountLocked
	}

	now := s.now.now()
	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		metrics.LoginAttempt("bad_password")
		updated, err := s.users.repo.RegisterFailedLogin(ctx, user.ID, s.settings.MaxFailed, now)
		if err != nil {
			return Session{}, err
		}
		if updated.Locked {
			s.logger.Warn("account locked after failed logins",
				zap.String("user_id", user.ID), zap.Int("failed_attempts", updated.FailedAttempts))
			if err := s.users.syncStatus(ctx, &updated); err != nil {
				s.logger.Error("failed to sync status", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
		return Session{}, ErrInvalidCredentials
	}

	if err := s.users.repo.RecordLogin(ctx, user.ID, now); err != nil {
		return Session{}, err
	}
	user.FailedAttempts = 0
	user.LastAccessAt = &now
	s.rehashIfNeeded(ctx, &user, req.Password)

	sess, err := s.session(user)
	if err != nil {
		return Session{}, err
	}
	metrics.LoginAttempt("success")
	s.recorder.Login(ctx, user.ID)
	return sess, nil
}

// rehashIfNeeded upgrades hashes created with a different bcrypt cost.
func (s *AuthService) rehashIfNeeded(ctx context.Context, user *types.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.users.repo.SetPasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("rehash not stored", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// Logout only records the event; tokens are stateless.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.recorder.Logout(ctx, userID)
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}
	if !user.Active {
		return types.User{}, ErrUnauthorized
	}
	return user, nil
}

// SendVerificationCode stores a fresh code for email and mails it. Unknown
// and already verified addresses get the same empty answer so the endpoint
// does not reveal which accounts exist. Delivery failures are logged only.
// The code is returned when ExposeCode is set.
func (s *AuthService) SendVerificationCode(ctx context.Context, email string) (string, error) {
	user, err := s.users.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if user.EmailVerified {
		return "", nil
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return "", err
	}
	expires := s.now.now().Add(s.settings.CodeTTL)
	if err := s.users.repo.SetVerificationCode(ctx, user.ID, code, expires); err != nil {
		return "", translate("User", err)
	}

	if err := s.mailer.Send(ctx, mail.VerificationMessage(user.Email, code, s.settings.CodeTTL)); err != nil {
		metrics.MailFailed("inline")
		s.logger.Warn("verification mail not sent", zap.String("user_id", user.ID), zap.Error(err))
	}

	if !s.settings.ExposeCode {
		return "", nil
	}
	return code, nil
}

// VerifyEmail accepts a pending code once, activates the account and signs
// the user in. Each wrong code counts against the pending one; after
// MaxCodeAttempts the code is discarded and a new one must be requested.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (Session, error) {
	before, err := s.users.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return Session{}, ErrVerificationCodeMissing
		}
		return Session{}, err
	}
	if before.VerificationCode == nil {
		return Session{}, ErrVerificationCodeMissing
	}
	if before.VerificationExpiresAt == nil || s.now.now().After(*before.VerificationExpiresAt) {
		return Session{}, ErrVerificationCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(*before.VerificationCode), []byte(strings.TrimSpace(code))) != 1 {
		attempts, err := s.users.repo.RegisterFailedVerification(ctx, before.ID, s.settings.MaxCodeAttempts)
		if err != nil {
			return Session{}, translate("User", err)
		}
		if attempts >= s.settings.MaxCodeAttempts {
			s.logger.Warn("verification code discarded after wrong attempts",
				zap.String("user_id", before.ID), zap.Int("attempts", attempts))
			return Session{}, ErrVerificationAttempts
		}
		return Session{}, ErrVerificationCodeMismatch
	}

	updated, err := s.users.repo.ConsumeVerificationCode(ctx, before.ID, *before.VerificationCode)
	if err != nil {
		if isNotFound(err) {
			return Session{}, ErrVerificationCodeMissing
		}
		return Session{}, err
	}
	if err := s.users.syncStatus(ctx, &updated); err != nil {
		return Session{}, err
	}
	s.recorder.Updated(ctx, "User", updated.ID, before, updated)
	return s.session(updated)
}

// IsAdmin reports whether user holds the administrator user type.
func (s *AuthService) IsAdmin(ctx context.Context, user types.User) (bool, error) {
	if s.settings.AdminTypeCode == "" {
		return false, nil
	}
	userType, err := s.userTypes.Get(ctx, user.UserTypeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(userType.Code, s.settings.AdminTypeCode), nil
}

// GrantAdmin moves the account with email to the administrator user type,
// creating the type on first use.
func (s *AuthService) GrantAdmin(ctx context.Context, email string) (types.User, error) {
	if s.settings.AdminTypeCode == "" {
		return types.User{}, errors.New("no administrator user type configured")
	}
	before, err := s.users.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return types.User{}, translate("User", err)
	}
	adminType, err := s.userTypes.GetOrCreate(ctx, s.settings.AdminTypeCode, adminTypeName)
	if err != nil {
		return types.User{}, err
	}
	if before.UserTypeID == adminType.ID {
		return before, nil
	}
	user := before
	user.UserTypeID = adminType.ID
	return s.users.save(ctx, before, user)
}

// Unlock clears the lockout of a locked account.
func (s *AuthService) Unlock(ctx context.Context, id string) (types.User, error) {
	before, err := s.users.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, translate("User", err)
	}
	if !before.Locked {
		return types.User{}, ErrNotLocked
	}
	user := before
	user.Locked = false
	user.FailedAttempts = 0
	user.LockedAt = nil
	return s.users.save(ctx, before, user)
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, id string, req ChangePasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	before, err := s.users.repo.GetByID(ctx, id)
	if err != nil {
		return translate("User", err)
	}
	if !s.hasher.Verify(before.PasswordHash, req.CurrentPassword) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.repo.SetPasswordHash(ctx, id, hash); err != nil {
		return translate("User", err)
	}
	after := before
	after.PasswordHash = hash
	s.recorder.Updated(ctx, "User", id, before, after)
	return nil
}

// IsAuthError reports errors that mean the caller is not authenticated.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired)
}
