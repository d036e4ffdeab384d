package memory

import (
	"context"
	"testing"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	_, err := repo.Create(ctx, types.User{ID: "u1", PersonID: "p1", Email: "Ana@Example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{ID: "u2", PersonID: "p2", Email: "ana@example.com"})
	var dup *store.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
}

func TestRegisterFailedLoginLocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	_, err := repo.Create(ctx, types.User{ID: "u1", PersonID: "p1", Email: "a@b.co", Active: true})
	require.NoError(t, err)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var u types.User
	for i := 0; i < 5; i++ {
		u, err = repo.RegisterFailedLogin(ctx, "u1", 5, now)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, u.FailedAttempts)
	assert.True(t, u.Locked)
	require.NotNil(t, u.LockedAt)
	assert.True(t, u.LockedAt.Equal(now))
}

func TestLookupReferencesCountUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	userTypes := s.Lookup(types.LookupUserTypes)
	_, err := userTypes.Create(ctx, types.Lookup{ID: "t1", Code: "PATIENT", Name: "Patient", Active: true})
	require.NoError(t, err)
	_, err = s.Users.Create(ctx, types.User{ID: "u1", PersonID: "p1", UserTypeID: "t1", Email: "a@b.co"})
	require.NoError(t, err)

	n, err := userTypes.CountReferences(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Same(t, userTypes, s.Lookup(types.LookupUserTypes))
}

func TestPaginate(t *testing.T) {
	items := []int{5, 3, 1, 4, 2}
	page, total := paginate(items, types.Page{Page: 2, Limit: 2}, func(a, b int) bool { return a < b })
	assert.Equal(t, 5, total)
	assert.Equal(t, []int{3, 4}, page)

	page, _ = paginate(items, types.Page{Page: 9, Limit: 2}, func(a, b int) bool { return a < b })
	assert.Empty(t, page)
}

func TestExistsActiveAtStartIgnoresCancelled(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, types.Appointment{ID: "a1", SpecialistID: "s1", StartAt: start, Status: types.AppointmentCancelled})
	require.NoError(t, err)

	exists, err := repo.ExistsActiveAtStart(ctx, "s1", start, "")
	require.NoError(t, err)
	assert.False(t, exists)
}
