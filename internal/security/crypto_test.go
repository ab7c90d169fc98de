package security_test

import (
	"testing"

	"agentrouter/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestCredentialCipherRoundTrip(t *testing.T) {
	t.Run("seal then open returns original bytes", func(t *testing.T) {
		c, err := security.NewCredentialCipher(testKey())
		require.NoError(t, err)

		plaintext := []byte("sk-live-abc123")
		ciphertext, err := c.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		recovered, err := c.Open(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, recovered)
	})

	t.Run("two seals of the same plaintext produce different ciphertext", func(t *testing.T) {
		c, err := security.NewCredentialCipher(testKey())
		require.NoError(t, err)

		a, err := c.Seal([]byte("sk-live-abc123"))
		require.NoError(t, err)
		b, err := c.Seal([]byte("sk-live-abc123"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})
}

func TestCredentialCipherRejectsBadKeyLength(t *testing.T) {
	t.Run("short key is rejected", func(t *testing.T) {
		_, err := security.NewCredentialCipher([]byte("too-short"))
		assert.Error(t, err)
	})
}

func TestCredentialCipherOpenTamperedCiphertext(t *testing.T) {
	t.Run("tampered ciphertext fails to open", func(t *testing.T) {
		c, err := security.NewCredentialCipher(testKey())
		require.NoError(t, err)

		ciphertext, err := c.Seal([]byte("sk-live-abc123"))
		require.NoError(t, err)
		ciphertext[len(ciphertext)-1] ^= 0xFF

		_, err = c.Open(ciphertext)
		assert.Error(t, err)
	})

	t.Run("short ciphertext returns ErrCiphertextTooShort", func(t *testing.T) {
		c, err := security.NewCredentialCipher(testKey())
		require.NoError(t, err)

		_, err = c.Open([]byte("x"))
		assert.ErrorIs(t, err, security.ErrCiphertextTooShort)
	})
}

func TestDecodeKey(t *testing.T) {
	t.Run("accepts raw 32-byte string", func(t *testing.T) {
		key, err := security.DecodeKey("01234567890123456789012345678901")
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := security.DecodeKey("not-a-valid-key")
		assert.Error(t, err)
	})
}
