package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDenied       = errors.New("access denied")
	ErrNotFound     = errors.New("file not found")
	ErrInvalid      = errors.New("invalid request")
)
