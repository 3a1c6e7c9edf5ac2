// Package grpc exposes FileService over gRPC as sealbox.v1.FileService.
// Messages are plain Go structs carried by the JSON codec from internal/api.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/services"
	"google.golang.org/grpc"
)

// FileService is the business API served by GRPCServer.
type FileService interface {
	Upload(ctx context.Context, actor models.Principal, req *services.UploadRequest) (*models.Result, error)
	Download(ctx context.Context, actor models.Principal, id, password string) (*services.Download, error)
	Metadata(ctx context.Context, actor models.Principal, id, password string) (*models.Result, error)
	Delete(ctx context.Context, actor models.Principal, id string) (*models.Result, error)
	Dashboard(ctx context.Context, actor models.Principal) (*models.Result, error)
	MyLogs(ctx context.Context, actor models.Principal) (*models.Result, error)
	AllLogs(ctx context.Context, actor models.Principal) (*models.Result, error)
}

type GRPCServer struct {
	address   string
	files     FileService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, fs FileService, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		files:     fs,
		jwtSecret: []byte(secretKey),
	}, nil
}

// newServer builds a grpc.Server with the auth interceptors and the file
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.accessTokenStreamInterceptor),
	)
	srv.RegisterService(&fileServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
