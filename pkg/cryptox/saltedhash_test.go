package cryptox_test

import (
	"strings"
	"testing"

	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSaltedHashRoundTrip(t *testing.T) {
	hashed, err := cryptox.SaltedHash("app-7f3c")
	require.NoError(t, err)
	require.Contains(t, hashed, ".")

	require.True(t, cryptox.VerifySaltedHash("app-7f3c", hashed))
	require.False(t, cryptox.VerifySaltedHash("app-0000", hashed))
}

func TestSaltedHashFreshSaltPerCall(t *testing.T) {
	a, err := cryptox.SaltedHash("same-input")
	require.NoError(t, err)
	b, err := cryptox.SaltedHash("same-input")
	require.NoError(t, err)

	require.NotEqual(t, a, b, "each hash call should draw a fresh salt")
	require.True(t, cryptox.VerifySaltedHash("same-input", a))
	require.True(t, cryptox.VerifySaltedHash("same-input", b))
}

func TestSaltedHashWithSharedSalt(t *testing.T) {
	salt, err := cryptox.NewSalt()
	require.NoError(t, err)

	a, err := cryptox.SaltedHashWith("app-7f3c", salt)
	require.NoError(t, err)
	b, err := cryptox.SaltedHashWith("app-7f3c", salt)
	require.NoError(t, err)

	require.Equal(t, a, b, "shared salt should make digests comparable")
	require.True(t, cryptox.VerifySaltedHash("app-7f3c", a))

	_, err = cryptox.SaltedHashWith("app-7f3c", "not-hex")
	require.Error(t, err)
}

func TestVerifySaltedHashMalformed(t *testing.T) {
	require.False(t, cryptox.VerifySaltedHash("x", "no-separator"))
	require.False(t, cryptox.VerifySaltedHash("x", ""))
	require.False(t, cryptox.VerifySaltedHash("x", strings.Repeat("ab", 16)+".deadbeef"))
}
