package common

import "time"

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token. AuthorizationHeaderName with a "Bearer " prefix is accepted as well.
const (
	AccessTokenHeaderName   = "access_token"
	AuthorizationHeaderName = "authorization"
)

// RenewalWindow is how far a successful access pushes a file's expiry.
const RenewalWindow = 7 * 24 * time.Hour

// FileKeySize is the size of per-file and master keys (AES-256).
const FileKeySize = 32
