package cryptox_test

import (
	"crypto/rand"
	"testing"

	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func testAESKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpenSecret(t *testing.T) {
	key := testAESKey(t)

	sealed, err := cryptox.SealSecret(key, []byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	require.NotEmpty(t, sealed)

	opened, err := cryptox.OpenSecret(key, sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("JBSWY3DPEHPK3PXP"), opened)
}

func TestSealSecretFreshNonce(t *testing.T) {
	key := testAESKey(t)

	a, err := cryptox.SealSecret(key, []byte("secret"))
	require.NoError(t, err)
	b, err := cryptox.SealSecret(key, []byte("secret"))
	require.NoError(t, err)

	require.NotEqual(t, a, b, "each seal should draw a fresh nonce")
}

func TestOpenSecretWrongKey(t *testing.T) {
	sealed, err := cryptox.SealSecret(testAESKey(t), []byte("secret"))
	require.NoError(t, err)

	_, err = cryptox.OpenSecret(testAESKey(t), sealed)
	require.Error(t, err)
}

func TestOpenSecretTruncated(t *testing.T) {
	_, err := cryptox.OpenSecret(testAESKey(t), "AAAA")
	require.Error(t, err)
}
