package cryptox

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

// dirEntries lists names in dir, used to assert nothing partial is left behind.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func encryptBytes(t *testing.T, dir string, plain, key []byte) (path string, iv, tag []byte) {
	t.Helper()
	src := writeFile(t, dir, "plain", plain)
	path = filepath.Join(dir, "cipher")
	iv, tag, err := EncryptStream(context.Background(), src, path, key)
	require.NoError(t, err)
	return path, iv, tag
}

func TestStream_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 100, SegmentSize - 1, SegmentSize, SegmentSize + 1, 2 * SegmentSize, 3*SegmentSize + 17}

	for _, size := range sizes {
		dir := t.TempDir()
		key := GenerateKey()
		plain := randomBytes(t, size)

		cipherPath, iv, tag := encryptBytes(t, dir, plain, key)
		assert.Len(t, iv, NonceSize)
		assert.Len(t, tag, TagSize)

		out := filepath.Join(dir, "out")
		require.NoError(t, DecryptStream(context.Background(), cipherPath, out, key, iv, tag), "size %d", size)

		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plain, got), "size %d: plaintext mismatch", size)
	}
}

func TestStream_CiphertextLayout(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()

	plain := randomBytes(t, 2*SegmentSize+10)
	cipherPath, _, _ := encryptBytes(t, dir, plain, key)

	fi, err := os.Stat(cipherPath)
	require.NoError(t, err)
	// two sealed middle segments with inline tags plus a tagless final segment
	assert.Equal(t, int64(2*(SegmentSize+TagSize)+10), fi.Size())
}

func TestStream_FreshIVPerStream(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	src := writeFile(t, dir, "plain", []byte("same content"))

	iv1, _, err := EncryptStream(context.Background(), src, filepath.Join(dir, "c1"), key)
	require.NoError(t, err)
	iv2, _, err := EncryptStream(context.Background(), src, filepath.Join(dir, "c2"), key)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
}

func TestStream_TamperDetection(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	plain := randomBytes(t, SegmentSize+300)
	cipherPath, iv, tag := encryptBytes(t, dir, plain, key)

	original, err := os.ReadFile(cipherPath)
	require.NoError(t, err)

	flip := func(b []byte, i int) []byte {
		c := append([]byte(nil), b...)
		c[i] ^= 0x01
		return c
	}

	decrypt := func(ct, iv, tag []byte) error {
		out := filepath.Join(dir, "out")
		err := DecryptReader(context.Background(), bytes.NewReader(ct), out, key, iv, tag)
		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr), "no output may exist after a failed decrypt")
		return err
	}

	positions := []int{0, 1, SegmentSize / 2, SegmentSize + TagSize - 1, SegmentSize + TagSize, len(original) - 1}
	for _, pos := range positions {
		assert.ErrorIs(t, decrypt(flip(original, pos), iv, tag), common.ErrAuthentication, "ciphertext byte %d", pos)
	}
	for i := range iv {
		assert.ErrorIs(t, decrypt(original, flip(iv, i), tag), common.ErrAuthentication, "iv byte %d", i)
	}
	for i := range tag {
		assert.ErrorIs(t, decrypt(original, iv, flip(tag, i)), common.ErrAuthentication, "tag byte %d", i)
	}
}

func TestStream_TruncationAndExtension(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	plain := randomBytes(t, 2*SegmentSize+5)
	cipherPath, iv, tag := encryptBytes(t, dir, plain, key)

	ct, err := os.ReadFile(cipherPath)
	require.NoError(t, err)

	cases := map[string][]byte{
		"drop final segment":     ct[:2*(SegmentSize+TagSize)],
		"drop last middle+final": ct[:SegmentSize+TagSize],
		"cut inside final":       ct[:len(ct)-2],
		"empty":                  {},
		"appended byte":          append(append([]byte(nil), ct...), 0x00),
	}

	for name, mutated := range cases {
		err := DecryptReader(context.Background(), bytes.NewReader(mutated), filepath.Join(dir, "out"), key, iv, tag)
		assert.ErrorIs(t, err, common.ErrAuthentication, name)
	}
}

func TestStream_SegmentReorderDetected(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	plain := randomBytes(t, 3*SegmentSize+5)
	cipherPath, iv, tag := encryptBytes(t, dir, plain, key)

	ct, err := os.ReadFile(cipherPath)
	require.NoError(t, err)

	seg := SegmentSize + TagSize
	swapped := append([]byte(nil), ct...)
	copy(swapped[:seg], ct[seg:2*seg])
	copy(swapped[seg:2*seg], ct[:seg])

	err = DecryptReader(context.Background(), bytes.NewReader(swapped), filepath.Join(dir, "out"), key, iv, tag)
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestStream_WrongKey(t *testing.T) {
	dir := t.TempDir()
	cipherPath, iv, tag := encryptBytes(t, dir, []byte("secret"), GenerateKey())

	err := DecryptStream(context.Background(), cipherPath, filepath.Join(dir, "out"), GenerateKey(), iv, tag)
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestStream_MalformedEnvelope(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	cipherPath, iv, tag := encryptBytes(t, dir, []byte("secret"), key)

	err := DecryptStream(context.Background(), cipherPath, filepath.Join(dir, "out"), key, iv[:4], tag)
	assert.ErrorIs(t, err, common.ErrAuthentication)

	err = DecryptStream(context.Background(), cipherPath, filepath.Join(dir, "out"), key, iv, tag[:3])
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestStream_InvalidKeySize(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "plain", []byte("x"))

	_, _, err := EncryptStream(context.Background(), src, filepath.Join(dir, "c"), []byte("short"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStream_MissingSourceIsStorageFailure(t *testing.T) {
	dir := t.TempDir()

	_, _, err := EncryptStream(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "c"), GenerateKey())
	assert.ErrorIs(t, err, common.ErrStorage)

	err = DecryptStream(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "p"), GenerateKey(), make([]byte, NonceSize), make([]byte, TagSize))
	assert.ErrorIs(t, err, common.ErrStorage)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestEncryptReader_IOErrorLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := &failingReader{data: make([]byte, SegmentSize+10), err: errors.New("disk gone")}

	_, _, err := EncryptReader(context.Background(), src, filepath.Join(dir, "cipher"), GenerateKey())
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Empty(t, dirEntries(t, dir))
}

func TestDecryptReader_IOErrorLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	cipherPath, iv, tag := encryptBytes(t, dir, randomBytes(t, 3*SegmentSize), key)

	ct, err := os.ReadFile(cipherPath)
	require.NoError(t, err)

	outDir := t.TempDir()
	src := &failingReader{data: ct[:SegmentSize+TagSize+5], err: errors.New("connection reset")}
	err = DecryptReader(context.Background(), src, filepath.Join(outDir, "out"), key, iv, tag)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Empty(t, dirEntries(t, outDir))
}

// cancelAfterReader cancels ctx once the first chunk has been handed out.
type cancelAfterReader struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelAfterReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestStream_CancellationRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	plain := randomBytes(t, 4*SegmentSize)

	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelAfterReader{r: bytes.NewReader(plain), cancel: cancel}

	_, _, err := EncryptReader(ctx, src, filepath.Join(dir, "cipher"), key)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, dir))

	cipherPath, iv, tag := encryptBytes(t, t.TempDir(), plain, key)
	ct, err := os.ReadFile(cipherPath)
	require.NoError(t, err)

	ctx, cancel = context.WithCancel(context.Background())
	outDir := t.TempDir()
	err = DecryptReader(ctx, &cancelAfterReader{r: bytes.NewReader(ct), cancel: cancel}, filepath.Join(outDir, "out"), key, iv, tag)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, outDir))
}

func TestDecryptStream_OverwritesDestinationOnlyOnSuccess(t *testing.T) {
	dir := t.TempDir()
	key := GenerateKey()
	cipherPath, iv, tag := encryptBytes(t, dir, []byte("fresh"), key)

	out := writeFile(t, dir, "out", []byte("previous"))

	badTag := append([]byte(nil), tag...)
	badTag[0] ^= 0xff
	require.Error(t, DecryptStream(context.Background(), cipherPath, out, key, iv, badTag))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(b))

	require.NoError(t, DecryptStream(context.Background(), cipherPath, out, key, iv, tag))
	b, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(b))
}
