package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/sealbox/internal/api"
	"github.com/dmitrijs2005/sealbox/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	uploadDesc   = &grpc.StreamDesc{StreamName: "Upload", ClientStreams: true}
	downloadDesc = &grpc.StreamDesc{StreamName: "Download", ServerStreams: true}
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

// UploadSource is one file of an upload.
type UploadSource struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// UploadOptions are the sharing settings applied to every file of an upload.
type UploadOptions = api.UploadHeader

func withAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, "Bearer "+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, s.accessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) accessTokenStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, s.accessToken), desc, cc, method, opts...)
}

func NewSealboxClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(extra ...grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.accessTokenStreamInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	}, extra...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp api.PingResponse
	if err := s.conn.Invoke(ctx, api.MethodPing, &api.Empty{}, &resp); err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// Upload sends the header and then every source in order.
func (s *GRPCClient) Upload(ctx context.Context, opts UploadOptions, files []UploadSource) (*api.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header := opts
	header.Names = nil
	header.MimeTypes = nil
	for _, f := range files {
		header.Names = append(header.Names, f.Name)
		header.MimeTypes = append(header.MimeTypes, f.MimeType)
	}

	stream, err := s.conn.NewStream(ctx, uploadDesc, api.MethodUpload)
	if err != nil {
		return nil, s.mapError(err)
	}

	if err := stream.SendMsg(&api.UploadChunk{Header: &header}); err != nil {
		return nil, s.finishUpload(stream, err)
	}

	buf := make([]byte, api.ChunkSize)
	for i, f := range files {
		for {
			n, rerr := io.ReadFull(f.Content, buf)
			if n > 0 {
				if err := stream.SendMsg(&api.UploadChunk{Index: i, Data: buf[:n]}); err != nil {
					return nil, s.finishUpload(stream, err)
				}
			}
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				break
			}
			if rerr != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name, rerr)
			}
		}
	}

	if err := stream.CloseSend(); err != nil {
		return nil, s.mapError(err)
	}

	var res api.Result
	if err := stream.RecvMsg(&res); err != nil {
		return nil, s.mapError(err)
	}
	return &res, nil
}

// finishUpload turns a failed send into the server's status. SendMsg reports
// io.EOF when the server has already ended the stream.
func (s *GRPCClient) finishUpload(stream grpc.ClientStream, err error) error {
	if errors.Is(err, io.EOF) {
		var res api.Result
		err = stream.RecvMsg(&res)
	}
	return s.mapError(err)
}

// Download writes the plaintext of file id to w.
func (s *GRPCClient) Download(ctx context.Context, id, password string, w io.Writer) (*api.DownloadHeader, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.conn.NewStream(ctx, downloadDesc, api.MethodDownload)
	if err != nil {
		return nil, s.mapError(err)
	}
	if err := stream.SendMsg(&api.FileRequest{ID: id, Password: password}); err != nil {
		return nil, s.mapError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, s.mapError(err)
	}

	var first api.DownloadChunk
	if err := stream.RecvMsg(&first); err != nil {
		return nil, s.mapError(err)
	}
	if first.Header == nil {
		return nil, fmt.Errorf("%w: download stream did not start with a header", ErrInvalid)
	}

	var written int64
	for {
		var c api.DownloadChunk
		err := stream.RecvMsg(&c)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, s.mapError(err)
		}
		n, err := w.Write(c.Data)
		if err != nil {
			return nil, err
		}
		written += int64(n)
	}

	if written != first.Header.Size {
		return nil, fmt.Errorf("download truncated: got %d of %d bytes", written, first.Header.Size)
	}
	return first.Header, nil
}

func (s *GRPCClient) Metadata(ctx context.Context, id, password string) (*api.Result, error) {
	return s.invoke(ctx, api.MethodMetadata, &api.FileRequest{ID: id, Password: password})
}

func (s *GRPCClient) Delete(ctx context.Context, id string) (*api.Result, error) {
	return s.invoke(ctx, api.MethodDelete, &api.FileRequest{ID: id})
}

func (s *GRPCClient) Dashboard(ctx context.Context) (*api.Result, error) {
	return s.invoke(ctx, api.MethodDashboard, &api.Empty{})
}

func (s *GRPCClient) MyLogs(ctx context.Context) (*api.Result, error) {
	return s.invoke(ctx, api.MethodMyLogs, &api.Empty{})
}

func (s *GRPCClient) AllLogs(ctx context.Context) (*api.Result, error) {
	return s.invoke(ctx, api.MethodAllLogs, &api.Empty{})
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req any) (*api.Result, error) {
	var res api.Result
	if err := s.conn.Invoke(ctx, method, req, &res); err != nil {
		return nil, s.mapError(err)
	}
	return &res, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrDenied, strings.TrimPrefix(st.Message(), "access denied: "))
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalid, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
