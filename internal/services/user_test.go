package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleActiveMirrorsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.verified(t, "ana@example.com", "100")
	assert.Equal(t, types.StatusCodeActive, f.statusCode(t, user.ID))

	toggled, err := f.users.ToggleActive(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	assert.Equal(t, types.StatusCodeInactive, f.statusCode(t, user.ID))

	toggled, err = f.users.ToggleActive(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)
	assert.Equal(t, types.StatusCodeActive, f.statusCode(t, user.ID))
}

func TestUserDeleteIsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	require.NoError(t, f.users.Delete(ctx, user.ID))
	stored, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, types.StatusCodeInactive, stored.Status.Code)
	require.NotNil(t, stored.Person)
	assert.Equal(t, "Ana", stored.Person.FirstName)
}

func TestUserUpdateIgnoresProtectedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	updated, err := f.users.Update(ctx, user.ID, func(u *types.User) error {
		return json.Unmarshal([]byte(`{"email":"new@example.com","locked":true,"email_verified":true,"person_id":"other"}`), u)
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.False(t, updated.Locked)
	assert.False(t, updated.EmailVerified)
	assert.Equal(t, user.PersonID, updated.PersonID)
}

func TestUserUpdateRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com", "100")
	other := f.register(t, "luis@example.com", "200")

	_, err := f.users.Update(ctx, other.ID, func(u *types.User) error {
		u.Email = "ana@example.com"
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserUpdateRejectsUnknownUserType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	_, err := f.users.Update(ctx, user.ID, func(u *types.User) error {
		u.UserTypeID = "missing"
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestPersonDeleteRejectedWhileUserExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ana@example.com", "100")

	assert.ErrorIs(t, f.persons.Delete(ctx, user.PersonID), ErrInUse)

	orphan, err := f.persons.Create(ctx, types.Person{FirstName: "Luis", LastName: "Paz", DocType: "CC", DocNumber: "300"})
	require.NoError(t, err)
	require.NoError(t, f.persons.Delete(ctx, orphan.ID))
}

func TestPersonUpdateKeepsID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.persons.Create(ctx, types.Person{FirstName: "Luis", LastName: "Paz", DocType: "CC", DocNumber: "300"})
	require.NoError(t, err)

	updated, err := f.persons.Update(ctx, p.ID, func(row *types.Person) error {
		return json.Unmarshal([]byte(`{"id":"hijack","last_name":"Prado"}`), row)
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "Prado", updated.LastName)

	_, err = f.persons.Update(ctx, p.ID, func(row *types.Person) error {
		row.FirstName = ""
		return nil
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "first_name", verr.Fields[0].Field)
}
