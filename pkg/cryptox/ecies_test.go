package cryptox_test

import (
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptField(t *testing.T) {
	recipient, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)

	plaintext := []byte(`{"document":"passport","number":"N1234567"}`)

	encrypted, err := cryptox.EncryptField(recipient.PublicKey(), plaintext)
	require.NoError(t, err)
	require.Greater(t, len(encrypted), 97+16+12+16)

	decrypted, err := cryptox.DecryptField(recipient, encrypted)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestEncryptFieldEphemeralKeys(t *testing.T) {
	recipient, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)

	a, err := cryptox.EncryptField(recipient.PublicKey(), []byte("same"))
	require.NoError(t, err)
	b, err := cryptox.EncryptField(recipient.PublicKey(), []byte("same"))
	require.NoError(t, err)

	require.NotEqual(t, a[:97], b[:97], "each encryption should use a fresh ephemeral key")
}

func TestDecryptFieldWrongKey(t *testing.T) {
	recipient, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)
	other, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)

	encrypted, err := cryptox.EncryptField(recipient.PublicKey(), []byte("secret"))
	require.NoError(t, err)

	_, err = cryptox.DecryptField(other, encrypted)
	require.Error(t, err)
}

func TestDecryptFieldTooShort(t *testing.T) {
	recipient, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = cryptox.DecryptField(recipient, []byte("short"))
	require.Error(t, err)
}
