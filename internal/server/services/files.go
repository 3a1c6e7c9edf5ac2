// Package services contains server-side business logic. FileService ties the
// vault, the access policy and the lifecycle ledger together behind the
// operations exposed to clients.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/filex"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/cache"
	"github.com/dmitrijs2005/sealbox/internal/server/lifecycle"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/policy"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sealbox/internal/server/storage"
	"github.com/dmitrijs2005/sealbox/internal/server/vault"
	"github.com/google/uuid"
)

const (
	userLogsLimit = 100
	allLogsLimit  = 500
)

// Options carries the tunables of FileService.
type Options struct {
	// DefaultExpiry applies when an upload does not set an expiry.
	DefaultExpiry time.Duration
	// DownloadDir receives decrypted plaintext for the duration of one download.
	DownloadDir string
	// PublicBaseURL prefixes shared links; empty disables them.
	PublicBaseURL string
	CacheTTL      time.Duration
}

type FileService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	vault  *vault.Vault
	ledger *lifecycle.Ledger
	policy *policy.Engine
	cache  cache.Cache
	opts   Options
	logger logging.Logger

	now   func() time.Time
	newID func() string
}

func NewFileService(tx dbx.Transactor, repos repomanager.RepositoryManager, v *vault.Vault, ledger *lifecycle.Ledger,
	engine *policy.Engine, c cache.Cache, opts Options, logger logging.Logger) (*FileService, error) {

	dir, err := filex.EnsureDir(opts.DownloadDir)
	if err != nil {
		return nil, common.Storage("create download dir", err)
	}
	opts.DownloadDir = dir
	if opts.DefaultExpiry <= 0 {
		opts.DefaultExpiry = common.RenewalWindow
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &FileService{
		tx:     tx,
		repos:  repos,
		vault:  v,
		ledger: ledger,
		policy: engine,
		cache:  c,
		opts:   opts,
		logger: logger.With("module", "files"),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// UploadFile is one file of an upload.
type UploadFile struct {
	Content io.Reader
	// MimeType as declared by the client; sniffed from the content when empty.
	MimeType string
}

// UploadRequest is a batch upload sharing one set of policy parameters.
// Names must hold exactly one entry per file.
type UploadRequest struct {
	Files         []UploadFile
	Names         []string
	Access        string
	AllowedUsers  []string
	DownloadLimit *int64
	ExpiresAt     *time.Time
	Password      string
}

type uploadParams struct {
	access       models.AccessMode
	allowedUsers []string
	expiresAt    time.Time
	passwordHash string
}

func (s *FileService) validateUpload(ctx context.Context, req *UploadRequest, now time.Time) (*uploadParams, error) {
	if len(req.Files) == 0 {
		return nil, common.Validationf("no files were uploaded")
	}
	if len(req.Files) != len(req.Names) {
		return nil, common.Validationf("number of files and file names do not match")
	}
	for _, n := range req.Names {
		if strings.TrimSpace(n) == "" {
			return nil, common.Validationf("file name must not be empty")
		}
	}

	access, err := models.ParseAccessMode(req.Access)
	if err != nil {
		return nil, err
	}

	p := &uploadParams{access: access, expiresAt: now.Add(s.opts.DefaultExpiry)}

	if access == models.AccessRestricted {
		if len(req.AllowedUsers) == 0 {
			return nil, common.Validationf("allowed users must be specified for restricted access")
		}
		users := s.repos.Users(s.tx.Conn())
		for _, id := range req.AllowedUsers {
			if slices.Contains(p.allowedUsers, id) {
				continue
			}
			ok, err := users.Exists(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("check allowed user: %w", err)
			}
			if !ok {
				return nil, common.Validationf("unknown user %q in allowed users", id)
			}
			p.allowedUsers = append(p.allowedUsers, id)
		}
	}

	if req.DownloadLimit != nil && *req.DownloadLimit < 1 {
		return nil, common.Validationf("download limit must be at least 1")
	}

	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, common.Validationf("expiry must be in the future")
		}
		p.expiresAt = req.ExpiresAt.UTC()
	}

	if req.Password != "" {
		p.passwordHash = cryptox.HashPassword(req.Password)
	}
	return p, nil
}

// Upload encrypts and stores every file of req and records them for actor.
// Either all files are committed or none: blobs saved before a failure are
// removed again.
func (s *FileService) Upload(ctx context.Context, actor models.Principal, req *UploadRequest) (*models.Result, error) {
	now := s.now().UTC()

	params, err := s.validateUpload(ctx, req, now)
	if err != nil {
		return nil, err
	}

	saved := make([]*models.File, 0, len(req.Files))
	for i, item := range req.Files {
		key := storage.NewStorageKey(now)
		res, err := s.vault.Save(ctx, item.Content, key)
		if err != nil {
			s.removeBlobs(ctx, saved)
			return nil, fmt.Errorf("save %s: %w", req.Names[i], err)
		}

		mime := item.MimeType
		if mime == "" || mime == "application/octet-stream" {
			mime = res.DetectedType
		}

		var limit *int64
		if req.DownloadLimit != nil {
			l := *req.DownloadLimit
			limit = &l
		}

		saved = append(saved, &models.File{
			ID:            s.newID(),
			OwnerID:       actor.ID,
			Name:          strings.TrimSpace(req.Names[i]),
			StorageKey:    key,
			Size:          res.Size,
			MimeType:      mime,
			Access:        params.access,
			AllowedUsers:  params.allowedUsers,
			PasswordHash:  params.passwordHash,
			DownloadLimit: limit,
			UploadedAt:    now,
			ExpiresAt:     params.expiresAt,
			Envelope:      res.Envelope,
		})
	}

	if err := s.ledger.RecordUpload(ctx, saved, actor); err != nil {
		s.removeBlobs(ctx, saved)
		return nil, err
	}
	s.invalidate(ctx, actor.ID, actor.ID)

	views := make([]*models.FileView, 0, len(saved))
	for _, f := range saved {
		views = append(views, s.view(f, now))
	}
	s.logger.Info(ctx, "files uploaded", "user_id", actor.ID, "count", len(saved))
	return models.Success(views, "File uploaded successfully.", now), nil
}

func (s *FileService) removeBlobs(ctx context.Context, files []*models.File) {
	for _, f := range files {
		if err := s.vault.Remove(ctx, f.StorageKey); err != nil {
			s.logger.Error(ctx, "failed to remove orphaned blob", "storage_key", f.StorageKey, "error", err)
		}
	}
}

// Download is decrypted plaintext ready to be streamed to the caller.
// Close removes it.
type Download struct {
	Path     string
	Name     string
	MimeType string
	Size     int64
	File     *models.FileView
}

func (d *Download) Open() (*os.File, error) {
	return os.Open(d.Path)
}

func (d *Download) Close() error {
	return filex.Remove(d.Path)
}

// Download authorizes actor, decrypts the file and counts the download.
// Plaintext is handed out only after the download has been recorded.
func (s *FileService) Download(ctx context.Context, actor models.Principal, id, password string) (*Download, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, f, actor, models.ActionDownload, password); err != nil {
		return nil, err
	}

	dest := filepath.Join(s.opts.DownloadDir, s.newID())
	if _, err := s.vault.Read(ctx, f, dest); err != nil {
		s.discard(ctx, dest)
		if errors.Is(err, common.ErrAuthentication) {
			s.logger.Error(ctx, "file failed integrity check", "file_id", f.ID)
		}
		return nil, err
	}

	updated, err := s.ledger.RecordDownload(ctx, f, actor)
	if err != nil {
		s.discard(ctx, dest)
		if reason := common.DenyReason(err); reason != "" {
			s.logger.Info(ctx, "download denied", "file_id", f.ID, "user_id", actor.ID, "reason", reason)
		}
		return nil, err
	}
	s.invalidate(ctx, actor.ID, f.OwnerID)

	return &Download{
		Path:     dest,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		File:     s.view(updated, s.now().UTC()),
	}, nil
}

func (s *FileService) discard(ctx context.Context, path string) {
	if err := filex.Remove(path); err != nil {
		s.logger.Error(ctx, "failed to remove plaintext", "path", path, "error", err)
	}
}

// Metadata returns the public view of a file and keeps it alive.
func (s *FileService) Metadata(ctx context.Context, actor models.Principal, id, password string) (*models.Result, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, f, actor, models.ActionViewMetadata, password); err != nil {
		return nil, err
	}

	updated, err := s.ledger.RecordMetadataAccess(ctx, f, actor)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.ID, f.OwnerID)

	now := s.now().UTC()
	return models.Success(s.view(updated, now), "File metadata retrieved successfully.", now), nil
}

// Delete removes a file owned by actor. The record goes first; a blob that
// cannot be removed afterwards is only logged.
func (s *FileService) Delete(ctx context.Context, actor models.Principal, id string) (*models.Result, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, f, actor, models.ActionDelete, ""); err != nil {
		return nil, err
	}

	if err := s.ledger.RecordDeletion(ctx, f, actor); err != nil {
		return nil, err
	}
	if err := s.vault.Remove(ctx, f.StorageKey); err != nil {
		s.logger.Error(ctx, "failed to remove blob of deleted file", "file_id", f.ID, "storage_key", f.StorageKey, "error", err)
	}
	s.invalidate(ctx, actor.ID, f.OwnerID)

	return models.Success(nil, "File deleted successfully.", s.now().UTC()), nil
}

// Dashboard lists the files owned by actor with their current state.
func (s *FileService) Dashboard(ctx context.Context, actor models.Principal) (*models.Result, error) {
	now := s.now().UTC()
	key := cache.DashboardKey(actor.ID)

	var views []*models.FileView
	hit := s.cacheGet(ctx, key, &views)
	if hit {
		for _, v := range views {
			v.Refresh(now)
		}
	} else {
		list, err := s.repos.Files(s.tx.Conn()).ListByOwner(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		views = make([]*models.FileView, 0, len(list))
		for _, f := range list {
			views = append(views, s.view(f, now))
		}
		s.cacheSet(ctx, key, views)
	}

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	if err := s.ledger.RecordDashboardAccess(ctx, actor, ids); err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.ID)

	return models.Success(views, "Dashboard data retrieved successfully.", now), nil
}

// MyLogs returns the newest events recorded for actor.
func (s *FileService) MyLogs(ctx context.Context, actor models.Principal) (*models.Result, error) {
	return s.logs(ctx, cache.UserLogsKey(actor.ID), func(ctx context.Context) ([]*models.Event, error) {
		return s.repos.Events(s.tx.Conn()).ListByUser(ctx, actor.ID, userLogsLimit)
	})
}

// AllLogs returns the newest events of every user. Admins only.
func (s *FileService) AllLogs(ctx context.Context, actor models.Principal) (*models.Result, error) {
	if !s.policy.CanListAllLogs(actor) {
		return nil, common.Denied(common.ReasonForbidden)
	}
	return s.logs(ctx, cache.AllLogsKey(), func(ctx context.Context) ([]*models.Event, error) {
		return s.repos.Events(s.tx.Conn()).ListAll(ctx, allLogsLimit)
	})
}

func (s *FileService) logs(ctx context.Context, key string, load func(context.Context) ([]*models.Event, error)) (*models.Result, error) {
	var list []*models.Event
	if !s.cacheGet(ctx, key, &list) {
		var err error
		if list, err = load(ctx); err != nil {
			return nil, err
		}
		if list == nil {
			list = []*models.Event{}
		}
		s.cacheSet(ctx, key, list)
	}
	return models.Success(list, "Logs retrieved successfully.", s.now().UTC()), nil
}

func (s *FileService) find(ctx context.Context, id string) (*models.File, error) {
	if id == "" {
		return nil, common.Validationf("file id is required")
	}
	f, err := s.repos.Files(s.tx.Conn()).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("file %s: %w", id, common.ErrorNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *FileService) authorize(ctx context.Context, f *models.File, actor models.Principal, action models.Action, password string) error {
	d := s.policy.Authorize(f, policy.Request{Principal: actor, Action: action, Password: password}, s.now().UTC())
	if !d.Allowed {
		s.logger.Info(ctx, "access denied", "file_id", f.ID, "user_id", actor.ID, "action", action.String(), "reason", d.Reason)
	}
	return d.Err()
}

func (s *FileService) view(f *models.File, now time.Time) *models.FileView {
	v := models.NewFileView(f, lifecycle.State(f, now))
	if s.opts.PublicBaseURL != "" {
		v.SharedLink = s.opts.PublicBaseURL + "/api/download/" + f.ID
	}
	return v
}

// invalidate drops cached listings affected by an event of actor on files
// owned by owners.
func (s *FileService) invalidate(ctx context.Context, actorID string, owners ...string) {
	keys := []string{cache.UserLogsKey(actorID), cache.AllLogsKey()}
	for _, o := range owners {
		keys = append(keys, cache.DashboardKey(o))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn(ctx, "cache invalidation failed", "error", err)
	}
}

func (s *FileService) cacheGet(ctx context.Context, key string, dest any) bool {
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn(ctx, "cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (s *FileService) cacheSet(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v, s.opts.CacheTTL); err != nil {
		s.logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}
