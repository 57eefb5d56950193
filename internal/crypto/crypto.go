// internal/crypto/crypto.go
//
// This package encrypts the device passwords kept in the rpictl profile file.
// Keys are derived from an operator passphrase with Argon2id and data is sealed
// with AES-256-GCM.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// KEY_SIZE defines the size of the encryption key in bytes.
	KEY_SIZE = 32 // 32 bytes for AES-256

	// SALT_SIZE is the length of the random salt stored next to the profiles.
	SALT_SIZE = 16
)

// Argon2id parameters. Changing them invalidates stored passwords.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Cipher represents an AES-256-GCM cipher with a specific key.
type Cipher struct {
	key []byte // Encryption key used for AES-256-GCM
}

// NewSalt returns a fresh random salt, hex-encoded for the config file.
func NewSalt() (string, error) {
	salt := make([]byte, SALT_SIZE)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %v", err)
	}
	return hex.EncodeToString(salt), nil
}

// NewCipher derives a key from the passphrase and the hex-encoded salt.
// An empty or malformed salt falls back to using the raw salt string bytes.
func NewCipher(passphrase, salt string) *Cipher {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		saltBytes = []byte(salt)
	}
	key := argon2.IDKey([]byte(passphrase), saltBytes, argonTime, argonMemory, argonThreads, KEY_SIZE)
	return &Cipher{key: key}
}

// Encrypt encrypts the given plaintext using AES-256-GCM.
// It returns nonce||ciphertext as a hex-encoded string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %v", err)
	}

	// Seal appends the ciphertext to the nonce slice.
	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt decrypts a value produced by Encrypt.
func (c *Cipher) Decrypt(encryptedHex string) (string, error) {
	combined, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %v", err)
	}

	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(combined) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := aesGCM.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %v", err)
	}

	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %v", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %v", err)
	}
	return aesGCM, nil
}
