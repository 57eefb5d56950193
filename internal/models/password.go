// internal/models/password.go

package models

import (
	"errors"
	"rpictl/internal/crypto"
)

// SetPassword szyfruje i zapisuje hasło w profilu
func (h *Host) SetPassword(plainPassword string, cipher *crypto.Cipher) error {
	if plainPassword == "" {
		return errors.New("password cannot be empty")
	}
	if cipher == nil {
		return errors.New("cipher is not initialized")
	}

	encryptedPass, err := cipher.Encrypt(plainPassword)
	if err != nil {
		return err
	}

	h.Password = encryptedPass
	return nil
}

// HasPassword sprawdza czy profil ma zapisane hasło
func (h *Host) HasPassword() bool {
	return h.Password != ""
}

// GetDecryptedPassword zwraca odszyfrowane hasło
func (h *Host) GetDecryptedPassword(cipher *crypto.Cipher) (string, error) {
	if !h.HasPassword() {
		return "", errors.New("no password stored")
	}
	if cipher == nil {
		return "", errors.New("cipher is not initialized")
	}
	return cipher.Decrypt(h.Password)
}

// Clone tworzy kopię profilu
func (h *Host) Clone() *Host {
	c := *h
	return &c
}
