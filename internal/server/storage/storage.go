// Package storage keeps ciphertext blobs. Keys are opaque, slash-separated
// names produced by NewStorageKey; callers never see filesystem paths.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore persists ciphertext produced by the vault.
type BlobStore interface {
	// Put stores the file at srcPath under key. The caller still owns srcPath
	// and removes it afterwards; a store may move it instead of copying.
	Put(ctx context.Context, key, srcPath string) error
	// Open returns the ciphertext stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a fresh, date-bucketed blob key.
func NewStorageKey(now time.Time) string {
	return fmt.Sprintf("files/%d/%d/%d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}
