package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	require.NotContains(t, hash, "correct horse")
	require.True(t, strings.HasPrefix(hash, "$2"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)

	require.NoError(t, h.Verify("correct horse", hash))
	require.ErrorIs(t, h.Verify("wrong horse", hash), ErrPasswordMismatch)
}

func TestPasswordHasherSaltsEachHash(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)
	a, err := h.Hash("secret1")
	require.NoError(t, err)
	b, err := h.Hash("secret1")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPasswordHasherVerifiesWithEmbeddedCost(t *testing.T) {
	t.Parallel()

	hash, err := NewPasswordHasher(5).Hash("secret1")
	require.NoError(t, err)
	require.NoError(t, NewPasswordHasher(bcrypt.MinCost).Verify("secret1", hash))
}

func TestNewPasswordHasherCost(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).Cost())
	require.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).Cost())
	require.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).Cost())
	require.Equal(t, 12, NewPasswordHasher(12).Cost())
}

func TestPasswordHasherRejectsGarbageHash(t *testing.T) {
	t.Parallel()

	err := NewPasswordHasher(bcrypt.MinCost).Verify("secret1", "not-a-hash")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPasswordMismatch)
}
