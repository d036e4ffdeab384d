package auth

import (
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherSaltsAndPeppers(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, "pepper")

	first, err := h.Hash("Secret123!")
	require.NoError(t, err)
	second, err := h.Hash("Secret123!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify(first, "Secret123!"))
	assert.True(t, h.Verify(second, "Secret123!"))
	assert.False(t, h.Verify(first, "secret123!"))

	otherPepper := NewHasher(bcrypt.MinCost, "different")
	assert.False(t, otherPepper.Verify(first, "Secret123!"))
	assert.False(t, h.Verify("", "Secret123!"))
}

func TestHasherAcceptsLongPasswords(t *testing.T) {
	pepper := strings.Repeat("p", 32)
	h := NewHasher(bcrypt.MinCost, pepper)

	// 64 runes, 160 bytes in UTF-8.
	password := strings.Repeat("ñ€", 32)
	require.Equal(t, 64, utf8.RuneCountInString(password))
	require.Greater(t, len(password), 72)

	hash, err := h.Hash(password)
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, password))

	// Passwords sharing the first 72 bytes must still differ.
	other := password[:len(password)-3] + "x"
	assert.False(t, h.Verify(hash, other))

	ascii := strings.Repeat("a", 48)
	hash, err = h.Hash(ascii)
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, ascii))
	assert.False(t, NewHasher(bcrypt.MinCost, "").Verify(hash, ascii))
}

func TestHasherNeedsRehash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, "")
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, NewHasher(bcrypt.MinCost+1, "").NeedsRehash(hash))
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Issue("user-1", "ana@example.com")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestTokenErrors(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }
	token, err := m.Issue("user-1", "ana@example.com")
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other := NewTokenManager("other", time.Hour)
	other.now = func() time.Time { return issuedAt }
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}
