// Package client talks to the sealbox gRPC service.
//
// GRPCClient attaches the access token to every call, streams uploads and
// downloads in api.ChunkSize pieces, and maps gRPC status codes to the
// sentinel errors in this package so callers can match them with errors.Is.
package client
