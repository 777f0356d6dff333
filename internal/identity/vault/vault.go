// Package vault encrypts staff display names at rest. Detection logic only
// ever sees identity hashes; the fuzzy-duplicate pass is the single consumer
// that recovers plaintext names, and only for the records in one batch.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyLen   = 32
	nonceLen = 24
)

// Vault seals and opens display names with a long-lived symmetric key.
type Vault struct {
	key [keyLen]byte
}

// New builds a Vault from a 64-character hex key.
func New(hexKey string) (*Vault, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	if len(raw) != keyLen {
		return nil, fmt.Errorf("vault key: need %d bytes, got %d", keyLen, len(raw))
	}
	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// Seal encrypts a display name. The random nonce is prepended to the
// ciphertext and the whole value is base64-encoded for storage.
func (v *Vault) Seal(name string) (string, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal name: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(name), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("open name: %w", err)
	}
	if len(sealed) < nonceLen {
		return "", fmt.Errorf("open name: ciphertext too short")
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed[:nonceLen])
	plain, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, &v.key)
	if !ok {
		return "", fmt.Errorf("open name: decryption failed")
	}
	return string(plain), nil
}
