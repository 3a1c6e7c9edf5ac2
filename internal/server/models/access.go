package models

import (
	"github.com/dmitrijs2005/sealbox/internal/common"
)

// AccessMode is the sharing mode of a File.
type AccessMode int

const (
	AccessPrivate AccessMode = iota
	AccessPublic
	AccessRestricted
)

func (m AccessMode) String() string {
	switch m {
	case AccessPrivate:
		return "private"
	case AccessPublic:
		return "public"
	case AccessRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// ParseAccessMode converts the wire/storage form of an access mode.
// An empty string selects the default, AccessPrivate.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "", "private":
		return AccessPrivate, nil
	case "public":
		return AccessPublic, nil
	case "restricted":
		return AccessRestricted, nil
	default:
		return 0, common.Validationf("invalid access mode %q", s)
	}
}

// Action is an operation a principal requests on a File.
type Action int

const (
	ActionDownload Action = iota
	ActionViewMetadata
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionDownload:
		return "download"
	case ActionViewMetadata:
		return "view_metadata"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileState is the lifecycle state derived from a File's counters and expiry.
type FileState string

const (
	StateActive       FileState = "active"
	StateExpired      FileState = "expired"
	StateLimitReached FileState = "limit_reached"
)
