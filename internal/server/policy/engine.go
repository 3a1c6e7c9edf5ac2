// Package policy decides whether a principal may act on a stored file.
//
// Rules are evaluated in a fixed order:
//
//  1. delete is allowed to the owner only, regardless of mode, expiry or limit;
//  2. an expired file denies download and metadata reads (reason "expired");
//  3. an exhausted download limit denies downloads (reason "limit_reached");
//  4. the access mode decides membership (private, restricted, public);
//  5. a non-owner must present the share password when the file has one.
package policy

import (
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

// Request describes who wants to do what.
type Request struct {
	Principal models.Principal
	Action    models.Action
	// Password is the share password presented by the caller, if any.
	Password string
}

// Decision is the outcome of Authorize. Reason is set only when denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for an allow and a *common.DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return common.Denied(d.Reason)
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Options tunes policy choices that are not fixed by the rules above.
type Options struct {
	// OwnerMetadataAfterExpiry lets the owner read metadata of an expired file.
	OwnerMetadataAfterExpiry bool
}

// Engine evaluates requests. It holds no mutable state.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Authorize evaluates req against f at time now.
func (e *Engine) Authorize(f *models.File, req Request, now time.Time) Decision {
	owner := f.IsOwner(req.Principal.ID)

	if req.Action == models.ActionDelete {
		if owner {
			return allow
		}
		return deny(common.ReasonForbidden)
	}

	if f.Expired(now) {
		if !(owner && req.Action == models.ActionViewMetadata && e.opts.OwnerMetadataAfterExpiry) {
			return deny(common.ReasonExpired)
		}
	}

	if req.Action == models.ActionDownload && f.LimitReached() {
		return deny(common.ReasonLimitReached)
	}

	switch f.Access {
	case models.AccessPrivate:
		if !owner {
			return deny(common.ReasonForbidden)
		}
	case models.AccessRestricted:
		if !owner && !f.IsAllowed(req.Principal.ID) {
			return deny(common.ReasonForbidden)
		}
	case models.AccessPublic:
		if req.Principal.ID == "" {
			return deny(common.ReasonForbidden)
		}
	default:
		return deny(common.ReasonForbidden)
	}

	if !owner && f.HasPassword() {
		if req.Password == "" {
			return deny(common.ReasonPasswordRequired)
		}
		if !cryptox.VerifyPassword(f.PasswordHash, req.Password) {
			return deny(common.ReasonForbidden)
		}
	}

	return allow
}

// CanListAllLogs reports whether p may read the global audit log.
func (e *Engine) CanListAllLogs(p models.Principal) bool {
	return p.IsAdmin()
}
