package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/dmitrijs2005/sealbox/internal/api"
	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) metadata(ctx context.Context, req *api.FileRequest) (any, error) {
	res, err := s.files.Metadata(ctx, principalFrom(ctx), req.ID, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "Metadata", err)
	}
	return res, nil
}

func (s *GRPCServer) delete(ctx context.Context, req *api.FileRequest) (any, error) {
	res, err := s.files.Delete(ctx, principalFrom(ctx), req.ID)
	if err != nil {
		return nil, s.fail(ctx, "Delete", err)
	}
	return res, nil
}

func (s *GRPCServer) dashboard(ctx context.Context, _ *api.Empty) (any, error) {
	res, err := s.files.Dashboard(ctx, principalFrom(ctx))
	if err != nil {
		return nil, s.fail(ctx, "Dashboard", err)
	}
	return res, nil
}

func (s *GRPCServer) myLogs(ctx context.Context, _ *api.Empty) (any, error) {
	res, err := s.files.MyLogs(ctx, principalFrom(ctx))
	if err != nil {
		return nil, s.fail(ctx, "MyLogs", err)
	}
	return res, nil
}

func (s *GRPCServer) allLogs(ctx context.Context, _ *api.Empty) (any, error) {
	res, err := s.files.AllLogs(ctx, principalFrom(ctx))
	if err != nil {
		return nil, s.fail(ctx, "AllLogs", err)
	}
	return res, nil
}

func (s *GRPCServer) ping(ctx context.Context, _ *api.Empty) (any, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) upload(stream grpc.ServerStream) error {
	ctx := stream.Context()

	var first api.UploadChunk
	if err := stream.RecvMsg(&first); err != nil {
		if errors.Is(err, io.EOF) {
			return status.Error(codes.InvalidArgument, "empty upload stream")
		}
		return err
	}
	if first.Header == nil {
		return status.Error(codes.InvalidArgument, "first message must carry the upload header")
	}
	h := first.Header

	if len(h.MimeTypes) != 0 && len(h.MimeTypes) != len(h.Names) {
		return status.Error(codes.InvalidArgument, "number of mime types and file names do not match")
	}

	mux := &chunkMux{recv: stream.RecvMsg, files: len(h.Names)}
	req := &services.UploadRequest{
		Names:         h.Names,
		Access:        h.Access,
		AllowedUsers:  h.AllowedUsers,
		DownloadLimit: h.DownloadLimit,
		ExpiresAt:     h.ExpiresAt,
		Password:      h.Password,
	}
	for i := range h.Names {
		f := services.UploadFile{Content: mux.reader(i)}
		if len(h.MimeTypes) != 0 {
			f.MimeType = h.MimeTypes[i]
		}
		req.Files = append(req.Files, f)
	}

	res, err := s.files.Upload(ctx, principalFrom(ctx), req)
	if err != nil {
		return s.fail(ctx, "Upload", err)
	}
	return stream.SendMsg(res)
}

func (s *GRPCServer) download(req *api.FileRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()

	d, err := s.files.Download(ctx, principalFrom(ctx), req.ID, req.Password)
	if err != nil {
		return s.fail(ctx, "Download", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			s.logger.Error(ctx, "failed to remove plaintext", "path", d.Path, "error", err)
		}
	}()

	f, err := d.Open()
	if err != nil {
		return s.fail(ctx, "Download", common.Storage("open plaintext", err))
	}
	defer f.Close()

	view, err := json.Marshal(d.File)
	if err != nil {
		return s.fail(ctx, "Download", err)
	}
	if err := stream.SendMsg(&api.DownloadChunk{Header: &api.DownloadHeader{
		Name: d.Name, MimeType: d.MimeType, Size: d.Size, File: view,
	}}); err != nil {
		return err
	}

	buf := make([]byte, api.ChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := stream.SendMsg(&api.DownloadChunk{Data: buf[:n]}); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return s.fail(ctx, "Download", common.Storage("read plaintext", rerr))
		}
	}
}

// chunkMux splits one upload stream into per-file readers. Chunks must
// arrive in file order; the readers must be consumed in the same order.
type chunkMux struct {
	recv    func(any) error
	files   int
	pending *api.UploadChunk
	done    bool
}

func (m *chunkMux) next() (*api.UploadChunk, error) {
	if m.pending != nil {
		c := m.pending
		m.pending = nil
		return c, nil
	}
	if m.done {
		return nil, io.EOF
	}
	c := new(api.UploadChunk)
	if err := m.recv(c); err != nil {
		if errors.Is(err, io.EOF) {
			m.done = true
		}
		return nil, err
	}
	return c, nil
}

func (m *chunkMux) reader(index int) io.Reader {
	return &chunkReader{mux: m, index: index}
}

type chunkReader struct {
	mux   *chunkMux
	index int
	buf   []byte
	eof   bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		c, err := r.mux.next()
		if errors.Is(err, io.EOF) {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		switch {
		case c.Header != nil:
			return 0, common.Validationf("upload header sent twice")
		case c.Index >= r.mux.files || c.Index < 0:
			return 0, common.Validationf("chunk for file %d, but only %d names were sent", c.Index, r.mux.files)
		case c.Index < r.index:
			return 0, common.Validationf("chunk for file %d arrived after file %d", c.Index, r.index)
		case c.Index > r.index:
			r.mux.pending = c
			r.eof = true
			return 0, io.EOF
		}
		r.buf = c.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
