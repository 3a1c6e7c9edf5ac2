package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/common"
)

// WrapKey encrypts fileKey under masterKey with AES-256-GCM.
//
// A new random 96-bit IV is drawn on every call; the returned wrapped key
// and tag are the ciphertext and the detached GCM tag.
func WrapKey(fileKey, masterKey []byte) (wrapped, iv, tag []byte, err error) {
	if len(fileKey) != common.FileKeySize {
		return nil, nil, nil, fmt.Errorf("%w: file key must be %d bytes", common.ErrValidation, common.FileKeySize)
	}

	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = common.GenerateRandByteArray(NonceSize)
	sealed := aead.Seal(nil, iv, fileKey, nil)

	cut := len(sealed) - TagSize
	return sealed[:cut], iv, sealed[cut:], nil
}

// UnwrapKey recovers the file key. Any mismatch between the wrapped key,
// IV, tag and master key yields common.ErrAuthentication.
func UnwrapKey(wrapped, masterKey, iv, tag []byte) ([]byte, error) {
	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	if len(iv) != NonceSize || len(tag) != TagSize {
		return nil, fmt.Errorf("%w: malformed key envelope", common.ErrAuthentication)
	}

	sealed := make([]byte, 0, len(wrapped)+TagSize)
	sealed = append(sealed, wrapped...)
	sealed = append(sealed, tag...)

	fileKey, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: key unwrap", common.ErrAuthentication)
	}

	return fileKey, nil
}
