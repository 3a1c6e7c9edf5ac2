// Package cryptox implements the envelope-encryption primitives: per-file
// key generation, key wrapping under the master key, segmented streaming
// AES-256-GCM for file contents, and argon2id helpers for passphrases.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// NonceSize is the GCM nonce (IV) length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// GenerateKey returns a fresh random 256-bit key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(common.FileKeySize)
}

// DeriveMasterKey stretches a passphrase into a 256-bit master key with
// argon2id. The same passphrase and salt always produce the same key.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, common.FileKeySize)
}

// EncodeField renders binary envelope material as base64 text.
func EncodeField(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeField reverses EncodeField.
func DecodeField(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != common.FileKeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrValidation, common.FileKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
