package services

import (
	"context"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/auth"
	"github.com/GurgoSoft/MIND-sub001/internal/store/memory"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

type fixture struct {
	now      time.Time
	store    *memory.Store
	sink     *audit.MemoryStore
	recorder *audit.Recorder
	validate *Validator
	users    *UserService
	persons  *PersonService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		store:    memory.New(),
		sink:     audit.NewMemoryStore(),
		validate: NewValidator(),
	}
	f.recorder = audit.NewRecorder(types.AuditDomainUsers, f.sink, zap.NewNop())

	userTypes := NewLookupService(f.store.Lookup(types.LookupUserTypes), f.recorder, f.validate)
	statuses := NewLookupService(f.store.Lookup(types.LookupStatuses), f.recorder, f.validate)
	f.users = NewUserService(f.store.Users, f.store.Persons, userTypes, statuses, f.recorder, f.validate, zap.NewNop())
	f.persons = NewPersonService(f.store.Persons, f.store.Users, f.recorder, f.validate)
	f.auth = NewAuthService(AuthDeps{
		Users:     f.users,
		Persons:   f.store.Persons,
		UserTypes: userTypes,
		Hasher:    auth.NewHasher(bcrypt.MinCost, "pepper"),
		Tokens:    auth.NewTokenManager("test-secret", time.Hour),
		Recorder:  f.recorder,
		Validator: f.validate,
		Settings: AuthSettings{
			MaxFailed:    5,
			CodeTTL:      15 * time.Minute,
			UserTypeCode: "PATIENT",
			UserTypeName: "Patient",
			ExposeCode:   true,
		},
	})
	f.auth.now = func() time.Time { return f.now }
	return f
}

func registerRequest(email, doc string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Ana",
		LastName:  "Gomez",
		DocType:   "CC",
		DocNumber: doc,
		Email:     email,
		Password:  "s3cret-pass",
	}
}

func (f *fixture) register(t *testing.T, email, doc string) types.User {
	t.Helper()
	sess, err := f.auth.Register(context.Background(), registerRequest(email, doc))
	require.NoError(t, err)
	return sess.User
}

// verify registers and verifies a user so it can log in as ACTIVE.
func (f *fixture) verified(t *testing.T, email, doc string) types.User {
	t.Helper()
	ctx := context.Background()
	f.register(t, email, doc)
	code, err := f.auth.SendVerificationCode(ctx, email)
	require.NoError(t, err)
	sess, err := f.auth.VerifyEmail(ctx, email, code)
	require.NoError(t, err)
	return sess.User
}

func (f *fixture) statusCode(t *testing.T, userID string) string {
	t.Helper()
	u, err := f.users.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u.Status)
	return u.Status.Code
}

func newFailingRecorder() *audit.Recorder {
	return audit.NewRecorder(types.AuditDomainUsers, failingSink{}, zap.NewNop())
}
