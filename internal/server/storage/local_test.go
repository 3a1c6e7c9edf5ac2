package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageKey(t *testing.T) {
	now := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	k1, k2 := NewStorageKey(now), NewStorageKey(now)
	assert.Regexp(t, regexp.MustCompile(`^files/2025/7/4/[0-9a-f-]{36}$`), k1)
	assert.NotEqual(t, k1, k2)
}

func TestLocalStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "cipher")
	require.NoError(t, os.WriteFile(src, []byte("ciphertext"), 0o600))

	key := "files/2025/7/4/abc"
	require.NoError(t, s.Put(ctx, key, src))

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "ciphertext", string(b))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "deleting twice is fine")

	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside", "files/../../outside"} {
		_, err := s.Open(context.Background(), key)
		assert.ErrorIs(t, err, common.ErrValidation, key)
		assert.ErrorIs(t, s.Delete(context.Background(), key), common.ErrValidation, key)
	}
}

func TestLocalStore_PutMissingSource(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "files/x", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestLocalStore_PutCanceled(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "files/x", "whatever"), context.Canceled)
}
