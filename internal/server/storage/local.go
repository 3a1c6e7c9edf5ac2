package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/filex"
)

// LocalStore keeps blobs under a root directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, common.Storage("create storage dir", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", common.Validationf("invalid storage key %q", key)
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", common.Validationf("invalid storage key %q", key)
	}
	return p, nil
}

func (s *LocalStore) Put(ctx context.Context, key, srcPath string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := filex.EnsureDir(filepath.Dir(dst)); err != nil {
		return common.Storage("create blob dir", err)
	}
	if err := filex.MoveFile(srcPath, dst); err != nil {
		return common.Storage("store blob", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.Storage("open blob", common.ErrorNotFound)
		}
		return nil, common.Storage("open blob", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := filex.Remove(p); err != nil {
		return common.Storage("delete blob", err)
	}
	return nil
}
