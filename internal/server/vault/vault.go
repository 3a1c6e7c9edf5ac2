// Package vault turns plaintext uploads into stored ciphertext plus an
// encryption envelope, and back.
//
// Each file gets its own random 256-bit key. The file is encrypted with that
// key and the key is wrapped with the process-wide master key; only the
// wrapped form is ever persisted.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/filex"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/storage"
)

const sniffLen = 512

type Vault struct {
	store      storage.BlobStore
	masterKey  []byte
	scratchDir string
	maxSize    int64
	logger     logging.Logger
}

// New builds a Vault. masterKey must be 32 bytes; scratchDir holds short-lived
// plaintext and ciphertext while a save is in progress. A maxSize of zero or
// less means no cap.
func New(store storage.BlobStore, masterKey []byte, scratchDir string, maxSize int64, logger logging.Logger) (*Vault, error) {
	if len(masterKey) != common.FileKeySize {
		return nil, common.Validationf("master key must be %d bytes, got %d", common.FileKeySize, len(masterKey))
	}
	dir, err := filex.EnsureDir(scratchDir)
	if err != nil {
		return nil, common.Storage("create scratch dir", err)
	}
	return &Vault{
		store:      store,
		masterKey:  append([]byte(nil), masterKey...),
		scratchDir: dir,
		maxSize:    maxSize,
		logger:     logger.With("module", "vault"),
	}, nil
}

// SaveResult describes a completed save.
type SaveResult struct {
	Envelope models.Envelope
	Size     int64
	// DetectedType is the MIME type sniffed from the leading bytes.
	DetectedType string
}

// Save encrypts everything read from src and stores it under storageKey.
// Plaintext touches the disk only in the scratch area and is removed as soon
// as encryption finishes; no temporary file outlives the call on any path.
func (v *Vault) Save(ctx context.Context, src io.Reader, storageKey string) (*SaveResult, error) {
	plainPath, size, sniffed, err := v.spool(src)
	defer v.removeScratch(ctx, plainPath)
	if err != nil {
		return nil, err
	}

	key := cryptox.GenerateKey()
	defer common.WipeByteArray(key)

	cipherPath, err := v.scratchName("cipher")
	if err != nil {
		return nil, err
	}
	defer v.removeScratch(ctx, cipherPath)

	streamIV, streamTag, err := cryptox.EncryptStream(ctx, plainPath, cipherPath, key)
	v.removeScratch(ctx, plainPath)
	if err != nil {
		return nil, err
	}

	wrapped, keyIV, keyTag, err := cryptox.WrapKey(key, v.masterKey)
	if err != nil {
		return nil, err
	}

	if err := v.store.Put(ctx, storageKey, cipherPath); err != nil {
		return nil, err
	}

	return &SaveResult{
		Envelope: models.Envelope{
			WrappedKey: cryptox.EncodeField(wrapped),
			KeyIV:      cryptox.EncodeField(keyIV),
			KeyTag:     cryptox.EncodeField(keyTag),
			StreamIV:   cryptox.EncodeField(streamIV),
			StreamTag:  cryptox.EncodeField(streamTag),
		},
		Size:         size,
		DetectedType: sniffed,
	}, nil
}

// Read decrypts f into destPath and returns it. destPath appears only after
// the whole stream has been authenticated.
func (v *Vault) Read(ctx context.Context, f *models.File, destPath string) (string, error) {
	wrapped, keyIV, keyTag, streamIV, streamTag, err := decodeEnvelope(f.Envelope)
	if err != nil {
		return "", err
	}

	key, err := cryptox.UnwrapKey(wrapped, v.masterKey, keyIV, keyTag)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	rc, err := v.store.Open(ctx, f.StorageKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := cryptox.DecryptReader(ctx, rc, destPath, key, streamIV, streamTag); err != nil {
		return "", err
	}
	return destPath, nil
}

// Remove deletes the ciphertext stored under storageKey.
func (v *Vault) Remove(ctx context.Context, storageKey string) error {
	return v.store.Delete(ctx, storageKey)
}

func decodeEnvelope(e models.Envelope) (wrapped, keyIV, keyTag, streamIV, streamTag []byte, err error) {
	if !e.Complete() {
		return nil, nil, nil, nil, nil, fmt.Errorf("%w: incomplete envelope", common.ErrAuthentication)
	}
	fields := []*[]byte{&wrapped, &keyIV, &keyTag, &streamIV, &streamTag}
	for i, s := range []string{e.WrappedKey, e.KeyIV, e.KeyTag, e.StreamIV, e.StreamTag} {
		b, derr := cryptox.DecodeField(s)
		if derr != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("%w: malformed envelope", common.ErrAuthentication)
		}
		*fields[i] = b
	}
	return wrapped, keyIV, keyTag, streamIV, streamTag, nil
}

func (v *Vault) scratchName(kind string) (string, error) {
	f, err := os.CreateTemp(v.scratchDir, kind+"-*")
	if err != nil {
		return "", common.Storage("create scratch file", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", common.Storage("create scratch file", err)
	}
	return name, nil
}

// spool copies src into a scratch file, enforcing the size cap.
func (v *Vault) spool(src io.Reader) (path string, size int64, sniffed string, err error) {
	f, err := os.CreateTemp(v.scratchDir, "plain-*")
	if err != nil {
		return "", 0, "", common.Storage("create scratch file", err)
	}
	path = f.Name()
	defer f.Close()

	head := make([]byte, sniffLen)
	n, rerr := io.ReadFull(src, head)
	if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
		return path, 0, "", common.Storage("read upload", rerr)
	}
	head = head[:n]
	sniffed = http.DetectContentType(head)

	if _, err := f.Write(head); err != nil {
		return path, 0, "", common.Storage("write scratch file", err)
	}
	size = int64(n)

	if n == sniffLen {
		rest := src
		if v.maxSize > 0 {
			rest = io.LimitReader(src, max(v.maxSize-size+1, 1))
		}
		copied, err := io.Copy(f, rest)
		if err != nil {
			return path, 0, "", common.Storage("spool upload", err)
		}
		size += copied
	}

	if v.maxSize > 0 && size > v.maxSize {
		return path, 0, "", fmt.Errorf("%w: limit is %d bytes", common.ErrTooLarge, v.maxSize)
	}

	if err := f.Sync(); err != nil {
		return path, 0, "", common.Storage("sync scratch file", err)
	}
	return path, size, sniffed, nil
}

func (v *Vault) removeScratch(ctx context.Context, path string) {
	if err := filex.Remove(path); err != nil {
		v.logger.Error(ctx, "failed to remove scratch file", "path", path, "error", err)
	}
}
