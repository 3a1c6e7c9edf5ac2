package policy

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func limit(n int64) *int64 { return &n }

func file(mode models.AccessMode, opts ...func(*models.File)) *models.File {
	f := &models.File{
		ID:           "f1",
		OwnerID:      "alice",
		Access:       mode,
		AllowedUsers: []string{"bob"},
		ExpiresAt:    now.Add(24 * time.Hour),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func expired(f *models.File)      { f.ExpiresAt = now.Add(-time.Minute) }
func exhausted(f *models.File)    { f.DownloadLimit = limit(2); f.DownloadCount = 2 }
func withPassword(f *models.File) { f.PasswordHash = cryptox.HashPassword("open sesame") }

func req(id string, action models.Action) Request {
	return Request{Principal: models.Principal{ID: id, Role: models.RoleUser}, Action: action}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		file   *models.File
		req    Request
		want   bool
		reason string
	}{
		{name: "private owner download", file: file(models.AccessPrivate), req: req("alice", models.ActionDownload), want: true},
		{name: "private stranger download", file: file(models.AccessPrivate), req: req("carol", models.ActionDownload), reason: common.ReasonForbidden},
		{name: "private allow-list ignored", file: file(models.AccessPrivate), req: req("bob", models.ActionDownload), reason: common.ReasonForbidden},
		{name: "restricted owner", file: file(models.AccessRestricted), req: req("alice", models.ActionDownload), want: true},
		{name: "restricted listed", file: file(models.AccessRestricted), req: req("bob", models.ActionViewMetadata), want: true},
		{name: "restricted unlisted", file: file(models.AccessRestricted), req: req("carol", models.ActionDownload), reason: common.ReasonForbidden},
		{name: "public anyone", file: file(models.AccessPublic), req: req("carol", models.ActionDownload), want: true},
		{name: "public unauthenticated", file: file(models.AccessPublic), req: req("", models.ActionDownload), reason: common.ReasonForbidden},

		{name: "expired blocks owner download", file: file(models.AccessPublic, expired), req: req("alice", models.ActionDownload), reason: common.ReasonExpired},
		{name: "expired blocks metadata", file: file(models.AccessPublic, expired), req: req("carol", models.ActionViewMetadata), reason: common.ReasonExpired},
		{name: "expired wins over forbidden", file: file(models.AccessPrivate, expired), req: req("carol", models.ActionDownload), reason: common.ReasonExpired},
		{name: "limit blocks download", file: file(models.AccessPublic, exhausted), req: req("alice", models.ActionDownload), reason: common.ReasonLimitReached},
		{name: "limit keeps metadata", file: file(models.AccessPublic, exhausted), req: req("carol", models.ActionViewMetadata), want: true},
		{name: "expired before limit", file: file(models.AccessPublic, expired, exhausted), req: req("carol", models.ActionDownload), reason: common.ReasonExpired},

		{name: "owner deletes expired", file: file(models.AccessPrivate, expired, exhausted), req: req("alice", models.ActionDelete), want: true},
		{name: "listed cannot delete", file: file(models.AccessRestricted), req: req("bob", models.ActionDelete), reason: common.ReasonForbidden},
		{name: "public cannot delete", file: file(models.AccessPublic), req: req("carol", models.ActionDelete), reason: common.ReasonForbidden},

		{name: "password missing", file: file(models.AccessPublic, withPassword), req: req("carol", models.ActionDownload), reason: common.ReasonPasswordRequired},
		{name: "owner skips password", file: file(models.AccessPublic, withPassword), req: req("alice", models.ActionDownload), want: true},
	}

	e := NewEngine(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Authorize(tt.file, tt.req, now)
			assert.Equal(t, tt.want, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.want {
				assert.NoError(t, d.Err())
			} else {
				assert.ErrorIs(t, d.Err(), common.ErrAuthorization)
				assert.Equal(t, tt.reason, common.DenyReason(d.Err()))
			}
		})
	}
}

func TestAuthorize_Password(t *testing.T) {
	e := NewEngine(Options{})
	f := file(models.AccessPublic, withPassword)

	r := req("carol", models.ActionDownload)
	r.Password = "open sesame"
	assert.True(t, e.Authorize(f, r, now).Allowed)

	r.Password = "wrong"
	d := e.Authorize(f, r, now)
	assert.False(t, d.Allowed)
	assert.Equal(t, common.ReasonForbidden, d.Reason)

	// the password never widens membership
	p := file(models.AccessPrivate, withPassword)
	r.Password = "open sesame"
	assert.Equal(t, common.ReasonForbidden, e.Authorize(p, r, now).Reason)
}

func TestAuthorize_ExpiryBoundary(t *testing.T) {
	e := NewEngine(Options{})
	f := file(models.AccessPublic)
	f.ExpiresAt = now

	assert.True(t, e.Authorize(f, req("carol", models.ActionDownload), now).Allowed)
	assert.Equal(t, common.ReasonExpired, e.Authorize(f, req("carol", models.ActionDownload), now.Add(time.Nanosecond)).Reason)
}

func TestAuthorize_OwnerMetadataAfterExpiry(t *testing.T) {
	e := NewEngine(Options{OwnerMetadataAfterExpiry: true})
	f := file(models.AccessRestricted, expired)

	assert.True(t, e.Authorize(f, req("alice", models.ActionViewMetadata), now).Allowed)
	assert.Equal(t, common.ReasonExpired, e.Authorize(f, req("alice", models.ActionDownload), now).Reason)
	assert.Equal(t, common.ReasonExpired, e.Authorize(f, req("bob", models.ActionViewMetadata), now).Reason)
}

func TestAuthorize_UnknownModeDenies(t *testing.T) {
	e := NewEngine(Options{})
	f := file(models.AccessMode(42))

	assert.Equal(t, common.ReasonForbidden, e.Authorize(f, req("alice", models.ActionDownload), now).Reason)
}

func TestCanListAllLogs(t *testing.T) {
	e := NewEngine(Options{})

	assert.True(t, e.CanListAllLogs(models.Principal{ID: "x", Role: models.RoleAdmin}))
	assert.False(t, e.CanListAllLogs(models.Principal{ID: "x", Role: models.RoleUser}))
}
