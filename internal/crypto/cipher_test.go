package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewFromSecret(testSecret)
	require.NoError(t, err)
	return c
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1, err := DeriveKey(testSecret)
	require.NoError(t, err)
	k2, err := DeriveKey(testSecret)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDeriveKeyShortSecret(t *testing.T) {
	_, err := DeriveKey("too-short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRoundTrip(t *testing.T) {
	c := testCipher(t)
	cases := []string{
		"",
		"hello",
		"non-ascii: ¡hola! 病院 🏥",
		strings.Repeat("long plaintext ", 4096),
	}
	for _, p := range cases {
		blob, err := c.Encrypt(p)
		require.NoError(t, err)
		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestIVUniqueness(t *testing.T) {
	c := testCipher(t)
	a, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTamperDetection(t *testing.T) {
	c := testCipher(t)
	blob, err := c.Encrypt("do not tamper")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01
		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(mutated))
		assert.ErrorIs(t, err, ErrDecryption, "flipping byte %d must fail decryption", i)
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := testCipher(t)

	_, err := c.Decrypt("not base64!!!")
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestWrongKeyFailsClosed(t *testing.T) {
	c := testCipher(t)
	other, err := NewFromSecret("wrong-secret-padded-to-32-chars!!")
	require.NoError(t, err)

	blob, err := other.Encrypt("hello")
	require.NoError(t, err)
	_, err = c.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryption)
}
