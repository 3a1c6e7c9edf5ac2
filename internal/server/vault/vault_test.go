package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeFixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	vault   *Vault
	store   *storage.LocalStore
	root    string
	scratch string
}

func newFixture(t *testing.T, maxSize int64) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "blobs")
	scratch := filepath.Join(t.TempDir(), "scratch")

	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	v, err := New(store, cryptox.GenerateKey(), scratch, maxSize, logging.Nop{})
	require.NoError(t, err)
	return &fixture{vault: v, store: store, root: root, scratch: scratch}
}

func (fx *fixture) scratchEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(fx.scratch)
	require.NoError(t, err)
	return entries
}

func random(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestNew_RejectsBadMasterKey(t *testing.T) {
	_, err := New(nil, []byte("short"), t.TempDir(), 0, logging.Nop{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestVault_SaveRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1<<22)

	for _, size := range []int{0, 1, 511, 512, cryptox.SegmentSize + 3, 3*cryptox.SegmentSize + 17} {
		plain := random(t, size)
		key := storage.NewStorageKey(timeFixed)

		res, err := fx.vault.Save(ctx, bytes.NewReader(plain), key)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, int64(size), res.Size)
		assert.True(t, res.Envelope.Complete())
		assert.Empty(t, fx.scratchEntries(t), "scratch must be empty after save")

		stored, err := os.ReadFile(filepath.Join(fx.root, filepath.FromSlash(key)))
		require.NoError(t, err)
		if size > 0 {
			assert.False(t, bytes.Contains(stored, plain[:min(size, 64)]), "plaintext must not be stored")
		}

		f := &models.File{ID: "f", StorageKey: key, Envelope: res.Envelope}
		dest := filepath.Join(t.TempDir(), "out")
		got, err := fx.vault.Read(ctx, f, dest)
		require.NoError(t, err)
		assert.Equal(t, dest, got)

		out, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plain, out), "size %d", size)
	}
}

func TestVault_Save_DetectsContentType(t *testing.T) {
	fx := newFixture(t, 1<<20)
	res, err := fx.vault.Save(context.Background(), bytes.NewReader([]byte("%PDF-1.7\n...")), "files/a")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.DetectedType)
}

func TestVault_Save_TooLarge(t *testing.T) {
	fx := newFixture(t, 1000)

	_, err := fx.vault.Save(context.Background(), bytes.NewReader(random(t, 1001)), "files/big")
	assert.ErrorIs(t, err, common.ErrTooLarge)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, fx.scratchEntries(t))

	_, statErr := os.Stat(filepath.Join(fx.root, "files", "big"))
	assert.True(t, os.IsNotExist(statErr))

	res, err := fx.vault.Save(context.Background(), bytes.NewReader(random(t, 1000)), "files/exact")
	require.NoError(t, err, "exactly the limit is allowed")
	assert.Equal(t, int64(1000), res.Size)
}

func TestVault_Save_NoCapKeepsWholeFile(t *testing.T) {
	fx := newFixture(t, 0)
	plain := random(t, 4096)

	res, err := fx.vault.Save(context.Background(), bytes.NewReader(plain), "files/nocap")
	require.NoError(t, err)
	assert.Equal(t, int64(len(plain)), res.Size)

	f := &models.File{ID: "f", StorageKey: "files/nocap", Envelope: res.Envelope}
	dest := filepath.Join(t.TempDir(), "out")
	_, err = fx.vault.Read(context.Background(), f, dest)
	require.NoError(t, err)

	out, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plain, out), "got %d of %d bytes", len(out), len(plain))
}

type brokenReader struct{ after int }

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), r.after)
	r.after -= n
	return n, nil
}

func TestVault_Save_SourceErrorLeavesNothing(t *testing.T) {
	fx := newFixture(t, 1<<20)

	_, err := fx.vault.Save(context.Background(), &brokenReader{after: 4096}, "files/x")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Empty(t, fx.scratchEntries(t))
}

type failingStore struct {
	storage.BlobStore
	err error
}

func (s failingStore) Put(context.Context, string, string) error { return s.err }

func TestVault_Save_StoreFailureCleansScratch(t *testing.T) {
	fx := newFixture(t, 1<<20)
	fx.vault.store = failingStore{err: common.Storage("put object", errors.New("bucket gone"))}

	_, err := fx.vault.Save(context.Background(), bytes.NewReader(random(t, 2048)), "files/x")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Empty(t, fx.scratchEntries(t))
}

func TestVault_Save_Canceled(t *testing.T) {
	fx := newFixture(t, 1<<22)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.vault.Save(ctx, bytes.NewReader(random(t, 2*cryptox.SegmentSize)), "files/x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.scratchEntries(t))
}

func saved(t *testing.T, fx *fixture, plain []byte) *models.File {
	t.Helper()
	key := storage.NewStorageKey(timeFixed)
	res, err := fx.vault.Save(context.Background(), bytes.NewReader(plain), key)
	require.NoError(t, err)
	return &models.File{ID: "f", StorageKey: key, Envelope: res.Envelope}
}

func TestVault_Read_TamperedEnvelope(t *testing.T) {
	fx := newFixture(t, 1<<20)
	f := saved(t, fx, random(t, 5000))

	other := saved(t, fx, random(t, 5000))

	cases := map[string]func(e *models.Envelope){
		"swapped wrapped key": func(e *models.Envelope) { e.WrappedKey = other.Envelope.WrappedKey },
		"swapped key iv":      func(e *models.Envelope) { e.KeyIV = other.Envelope.KeyIV },
		"swapped stream tag":  func(e *models.Envelope) { e.StreamTag = other.Envelope.StreamTag },
		"swapped stream iv":   func(e *models.Envelope) { e.StreamIV = other.Envelope.StreamIV },
		"not base64":          func(e *models.Envelope) { e.KeyTag = "***" },
		"missing field":       func(e *models.Envelope) { e.StreamIV = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := *f
			mutate(&g.Envelope)
			dest := filepath.Join(t.TempDir(), "out")

			_, err := fx.vault.Read(context.Background(), &g, dest)
			assert.ErrorIs(t, err, common.ErrAuthentication)
			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr), "no output on failure")
		})
	}
}

func TestVault_Read_WrongMasterKey(t *testing.T) {
	fx := newFixture(t, 1<<20)
	f := saved(t, fx, random(t, 100))

	other, err := New(fx.store, cryptox.GenerateKey(), fx.scratch, 0, logging.Nop{})
	require.NoError(t, err)

	_, err = other.Read(context.Background(), f, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestVault_Read_CorruptedBlob(t *testing.T) {
	fx := newFixture(t, 1<<20)
	f := saved(t, fx, random(t, 3000))

	p := filepath.Join(fx.root, filepath.FromSlash(f.StorageKey))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	b[10] ^= 0x01
	require.NoError(t, os.WriteFile(p, b, 0o600))

	dest := filepath.Join(t.TempDir(), "out")
	_, err = fx.vault.Read(context.Background(), f, dest)
	assert.ErrorIs(t, err, common.ErrAuthentication)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestVault_Read_MissingBlob(t *testing.T) {
	fx := newFixture(t, 1<<20)
	f := saved(t, fx, random(t, 10))
	require.NoError(t, fx.vault.Remove(context.Background(), f.StorageKey))

	_, err := fx.vault.Read(context.Background(), f, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestVault_Remove(t *testing.T) {
	fx := newFixture(t, 1<<20)
	f := saved(t, fx, []byte("hello"))

	require.NoError(t, fx.vault.Remove(context.Background(), f.StorageKey))
	rc, err := fx.store.Open(context.Background(), f.StorageKey)
	if err == nil {
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
