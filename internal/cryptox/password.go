package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"golang.org/x/crypto/argon2"
)

const passwordScheme = "argon2id"

// HashPassword hashes a share password with argon2id and a random salt.
// The result is self-describing: "argon2id$<salt>$<hash>".
func HashPassword(password string) string {
	salt := common.GenerateRandByteArray(16)
	sum := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return strings.Join([]string{
		passwordScheme,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$")
}

// VerifyPassword reports whether password matches an encoded hash produced
// by HashPassword. Malformed hashes never match.
func VerifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != passwordScheme {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
