// Package aead wraps AES-256-GCM for encrypting small secrets at rest.
// The blob layout is nonce‖ciphertext‖tag with a fresh 96-bit random nonce
// per call; the nonce is never reused for a given key.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// ErrDecrypt is returned whenever a blob cannot be authenticated or is too
// short to contain a nonce and tag. Decryption fails closed: no partial
// plaintext is ever returned.
var ErrDecrypt = errors.New("aead: decryption failed")

const keySize = 32

// Cipher is safe for concurrent use once constructed.
type Cipher struct {
	aead cipher.AEAD
}

// New returns a Cipher keyed with a 32-byte key, typically obtained from
// the key deriver.
func New(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, errors.New("aead: aes-256-gcm requires a 32-byte key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt seals plaintext and prepends the random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce‖ciphertext‖tag blob produced by Encrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(blob) < ns+c.aead.Overhead() {
		return nil, ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
