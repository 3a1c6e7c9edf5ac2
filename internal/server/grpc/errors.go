package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps the core failure taxonomy to gRPC codes. Cryptographic and
// storage details never reach the caller.
func toStatus(err error) *status.Status {
	if reason := common.DenyReason(err); reason != "" {
		return status.New(codes.PermissionDenied, "access denied: "+reason)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, common.ErrValidation):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAuthentication):
		return status.New(codes.Internal, "file could not be decrypted")
	case errors.Is(err, common.ErrStorage):
		return status.New(codes.Unavailable, "storage unavailable")
	case errors.Is(err, common.ErrorNotFound):
		return status.New(codes.NotFound, "file not found")
	default:
		return status.New(codes.Internal, common.ErrorInternal.Error())
	}
}

// fail logs err according to its class and converts it to a status error.
func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	switch st.Code() {
	case codes.Internal, codes.Unavailable:
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	default:
		s.logger.Debug(ctx, "request rejected", "method", method, "code", st.Code().String(), "error", err)
	}
	return st.Err()
}
