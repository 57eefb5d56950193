package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, SALT_SIZE*2)

	c := NewCipher("correct horse", salt)
	enc, err := c.Encrypt("raspberry")
	require.NoError(t, err)
	assert.NotContains(t, enc, "raspberry")

	dec, err := NewCipher("correct horse", salt).Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "raspberry", dec)
}

func TestCipher_NonceIsRandom(t *testing.T) {
	c := NewCipher("pass", "abcd")
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_WrongKeyOrSalt(t *testing.T) {
	enc, err := NewCipher("pass", "abcd").Encrypt("secret")
	require.NoError(t, err)

	_, err = NewCipher("other", "abcd").Decrypt(enc)
	assert.Error(t, err)

	_, err = NewCipher("pass", "dcba").Decrypt(enc)
	assert.Error(t, err)
}

func TestCipher_MalformedInput(t *testing.T) {
	c := NewCipher("pass", "abcd")

	_, err := c.Decrypt("not-hex")
	assert.Error(t, err)

	_, err = c.Decrypt("00ff")
	assert.Error(t, err)
}
