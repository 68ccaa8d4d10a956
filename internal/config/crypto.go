package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32 // AES-256
	nonceSize        = 12 // GCM standard nonce size
	saltSize         = 16
	secretSize       = 32
	pbkdf2Iterations = 100000
)

// The remote password never sits in the config file in plaintext. It is
// sealed with a key derived from a per-machine secret kept in a
// separate 0600 file, so config.yaml alone does not leak credentials.

// SetPassword encrypts and stores the remote password. An empty
// password clears the stored credential.
func (c *Config) SetPassword(password string) error {
	if password == "" {
		c.PasswordEnc = ""
		c.Salt = ""
		return nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	c.Salt = base64.StdEncoding.EncodeToString(salt)

	key, err := c.deriveKey(salt)
	if err != nil {
		return err
	}

	sealed, err := encrypt(key, []byte(password))
	if err != nil {
		return err
	}
	c.PasswordEnc = sealed
	return nil
}

// Password decrypts the stored remote password. Returns "" when no
// credential is stored.
func (c *Config) Password() (string, error) {
	if c.PasswordEnc == "" {
		return "", nil
	}

	salt, err := base64.StdEncoding.DecodeString(c.Salt)
	if err != nil {
		return "", fmt.Errorf("bad credential salt: %w", err)
	}

	key, err := c.deriveKey(salt)
	if err != nil {
		return "", err
	}

	plain, err := decrypt(key, c.PasswordEnc)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// HasPassword reports whether a credential is stored, without exposing it.
func (c *Config) HasPassword() bool {
	return c.PasswordEnc != ""
}

// deriveKey stretches the machine secret with the given salt.
func (c *Config) deriveKey(salt []byte) ([]byte, error) {
	secret, err := c.machineSecret()
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New), nil
}

// machineSecret loads (or creates) the per-machine key material.
func (c *Config) machineSecret() ([]byte, error) {
	if c.dir == "" {
		return nil, errors.New("config directory not set")
	}
	path := filepath.Join(c.dir, "credentials.key")

	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		return data, nil
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return secret, nil
}

// encrypt seals plaintext using AES-256-GCM
func encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Seal appends nonce + ciphertext
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt opens data sealed by encrypt
func decrypt(key []byte, encrypted string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}

	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed: invalid key or corrupted data")
	}

	return plaintext, nil
}
