package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Both ends of a conversation must agree on these for decryption to succeed.
const (
	keySize    = 32
	ivSize     = 16
	iterations = 100_000
	salt       = "hms-chat-message-salt"

	MinSecretLen = 32
)

var (
	// ErrConfiguration means the encryption secret is unusable. Fatal at startup.
	ErrConfiguration = errors.New("crypto: invalid configuration")
	// ErrDecryption covers every decrypt failure: bad encoding, truncated blob,
	// tag mismatch. Callers must treat the message as unavailable, never render
	// partial plaintext.
	ErrDecryption = errors.New("crypto: decryption failed")
)

// DeriveKey derives the 256-bit message key from the shared secret with
// PBKDF2-HMAC-SHA256. Deterministic, and deliberately expensive: run it once
// per session and keep the Cipher around, not per message.
func DeriveKey(secret string) ([]byte, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: secret must be at least %d characters", ErrConfiguration, MinSecretLen)
	}
	return pbkdf2.Key([]byte(secret), []byte(salt), iterations, keySize, sha256.New), nil
}

// Cipher encrypts and decrypts message payloads with AES-256-GCM. Safe for
// concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a 32-byte key, normally one from DeriveKey.
func New(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: AES-256 requires a %d byte key", ErrConfiguration, keySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewFromSecret derives the key and builds the Cipher in one step.
func NewFromSecret(secret string) (*Cipher, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Encrypt seals plaintext under a fresh random 16-byte IV and returns
// base64(iv || ciphertext || tag). Same input never encrypts to the same
// output twice.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(iv, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Fails closed with ErrDecryption on any malformed
// or tampered blob.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(raw) < ivSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	plain, err := c.aead.Open(nil, raw[:ivSize], raw[ivSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plain), nil
}
