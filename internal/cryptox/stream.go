package cryptox

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/sealbox/internal/common"
)

// SegmentSize is the plaintext size of every segment except the last.
//
// Stream layout: the plaintext is cut into SegmentSize pieces, each sealed
// with AES-256-GCM under nonce = IV XOR big-endian(segment index). Every
// segment but the last is stored as ciphertext||tag. The last segment is
// sealed with a distinct additional-data byte and stored without its tag;
// that tag is the stream's authentication tag kept in the envelope.
const SegmentSize = 64 * 1024

var (
	aadMiddle = []byte{0x00}
	aadFinal  = []byte{0x01}
)

func segmentNonce(iv []byte, index uint64) []byte {
	nonce := make([]byte, NonceSize)
	copy(nonce, iv)

	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], index)
	for i := range ctr {
		nonce[NonceSize-8+i] ^= ctr[i]
	}

	return nonce
}

// pendingFile is an output that becomes visible at its destination only
// after commit; discard removes it otherwise.
type pendingFile struct {
	f    *os.File
	w    *bufio.Writer
	dest string
	done bool
}

func createPending(dest string) (*pendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, err
	}
	return &pendingFile{f: f, w: bufio.NewWriterSize(f, SegmentSize+TagSize), dest: dest}, nil
}

func (p *pendingFile) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

func (p *pendingFile) commit() error {
	if err := p.w.Flush(); err != nil {
		return err
	}
	if err := p.f.Sync(); err != nil {
		return err
	}
	if err := p.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(p.f.Name(), p.dest); err != nil {
		return err
	}
	p.done = true
	return nil
}

func (p *pendingFile) discard() {
	if p.done {
		return
	}
	_ = p.f.Close()
	_ = os.Remove(p.f.Name())
}

// EncryptStream encrypts the file at srcPath into destPath with key and
// returns the stream IV and authentication tag.
func EncryptStream(ctx context.Context, srcPath, destPath string, key []byte) (iv, tag []byte, err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, nil, common.Storage("open plaintext", err)
	}
	defer src.Close()

	return EncryptReader(ctx, src, destPath, key)
}

// EncryptReader encrypts everything read from src into destPath.
//
// destPath appears only once the whole stream has been written; on any
// error, including cancellation of ctx, the partial output is removed.
func EncryptReader(ctx context.Context, src io.Reader, destPath string, key []byte) (iv, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	out, err := createPending(destPath)
	if err != nil {
		return nil, nil, common.Storage("create ciphertext", err)
	}
	defer out.discard()

	iv = common.GenerateRandByteArray(NonceSize)
	r := bufio.NewReaderSize(src, SegmentSize)
	buf := make([]byte, SegmentSize)
	sealed := make([]byte, 0, SegmentSize+TagSize)

	for index := uint64(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		n, rerr := io.ReadFull(r, buf)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return nil, nil, common.Storage("read plaintext", rerr)
		}

		final := n < SegmentSize
		if !final {
			if _, perr := r.Peek(1); perr == io.EOF {
				final = true
			} else if perr != nil {
				return nil, nil, common.Storage("read plaintext", perr)
			}
		}

		aad := aadMiddle
		if final {
			aad = aadFinal
		}
		sealed = aead.Seal(sealed[:0], segmentNonce(iv, index), buf[:n], aad)

		if !final {
			if _, err := out.Write(sealed); err != nil {
				return nil, nil, common.Storage("write ciphertext", err)
			}
			continue
		}

		cut := len(sealed) - TagSize
		if _, err := out.Write(sealed[:cut]); err != nil {
			return nil, nil, common.Storage("write ciphertext", err)
		}
		tag = append([]byte(nil), sealed[cut:]...)
		break
	}

	if err := out.commit(); err != nil {
		return nil, nil, common.Storage("commit ciphertext", err)
	}

	return iv, tag, nil
}

// DecryptStream decrypts the file at srcPath into destPath.
func DecryptStream(ctx context.Context, srcPath, destPath string, key, iv, tag []byte) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return common.Storage("open ciphertext", err)
	}
	defer src.Close()

	return DecryptReader(ctx, src, destPath, key, iv, tag)
}

// DecryptReader decrypts a stream produced by EncryptReader into destPath.
//
// The plaintext is staged next to destPath and renamed into place only after
// the final segment has been authenticated, so a caller never observes
// output from a stream that fails verification. Integrity failures of any
// kind (tampering, truncation, wrong key/IV/tag) return
// common.ErrAuthentication.
func DecryptReader(ctx context.Context, src io.Reader, destPath string, key, iv, tag []byte) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	if len(iv) != NonceSize || len(tag) != TagSize {
		return fmt.Errorf("%w: malformed stream envelope", common.ErrAuthentication)
	}

	out, err := createPending(destPath)
	if err != nil {
		return common.Storage("create plaintext", err)
	}
	defer out.discard()

	r := bufio.NewReaderSize(src, SegmentSize+TagSize)
	buf := make([]byte, SegmentSize+TagSize)
	var plain []byte

	for index := uint64(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := io.ReadFull(r, buf)
		switch {
		case rerr == nil:
			if _, perr := r.Peek(1); perr != nil {
				if errors.Is(perr, io.EOF) {
					// A full sealed segment cannot be the last one.
					return fmt.Errorf("%w: truncated stream", common.ErrAuthentication)
				}
				return common.Storage("read ciphertext", perr)
			}

			plain, err = aead.Open(plain[:0], segmentNonce(iv, index), buf, aadMiddle)
			if err != nil {
				return fmt.Errorf("%w: segment %d", common.ErrAuthentication, index)
			}
			if _, err := out.Write(plain); err != nil {
				return common.Storage("write plaintext", err)
			}

		case rerr == io.EOF || rerr == io.ErrUnexpectedEOF:
			if n > SegmentSize {
				return fmt.Errorf("%w: malformed final segment", common.ErrAuthentication)
			}

			sealed := append(buf[:n], tag...)
			plain, err = aead.Open(plain[:0], segmentNonce(iv, index), sealed, aadFinal)
			if err != nil {
				return fmt.Errorf("%w: final segment", common.ErrAuthentication)
			}
			if _, err := out.Write(plain); err != nil {
				return common.Storage("write plaintext", err)
			}

			if err := out.commit(); err != nil {
				return common.Storage("commit plaintext", err)
			}
			return nil

		default:
			return common.Storage("read ciphertext", rerr)
		}
	}
}
