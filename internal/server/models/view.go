package models

import "time"

var previewableMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"video/mp4":       true,
	"audio/mpeg":      true,
	"audio/mp3":       true,
}

// IsPreviewable reports whether a client may render mimeType inline.
func IsPreviewable(mimeType string) bool {
	return previewableMimeTypes[mimeType]
}

// FileView is the externally visible form of a File. It never carries the
// envelope, the storage key or the password hash.
type FileView struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	OwnerID           string    `json:"owner_id"`
	Size              int64     `json:"size"`
	MimeType          string    `json:"mime_type"`
	Access            string    `json:"access_type"`
	AllowedUsers      []string  `json:"allowed_users,omitempty"`
	PasswordProtected bool      `json:"password_protected"`
	DownloadCount     int64     `json:"download_count"`
	DownloadLimit     *int64    `json:"download_limit"`
	UploadedAt        time.Time `json:"uploaded_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	State             FileState `json:"status"`
	Previewable       bool      `json:"previewable"`
	SharedLink        string    `json:"shared_link,omitempty"`
}

// NewFileView strips f down to its public metadata.
func NewFileView(f *File, state FileState) *FileView {
	v := &FileView{
		ID:                f.ID,
		Name:              f.Name,
		OwnerID:           f.OwnerID,
		Size:              f.Size,
		MimeType:          f.MimeType,
		Access:            f.Access.String(),
		PasswordProtected: f.HasPassword(),
		DownloadCount:     f.DownloadCount,
		UploadedAt:        f.UploadedAt,
		ExpiresAt:         f.ExpiresAt,
		State:             state,
		Previewable:       IsPreviewable(f.MimeType),
	}
	if f.Access == AccessRestricted {
		v.AllowedUsers = append([]string(nil), f.AllowedUsers...)
	}
	if f.DownloadLimit != nil {
		limit := *f.DownloadLimit
		v.DownloadLimit = &limit
	}
	return v
}

// StateAt is the single source of lifecycle precedence: expiry wins over an
// exhausted limit.
func StateAt(expiresAt time.Time, count int64, limit *int64, now time.Time) FileState {
	switch {
	case now.After(expiresAt):
		return StateExpired
	case limit != nil && count >= *limit:
		return StateLimitReached
	default:
		return StateActive
	}
}

// Refresh recomputes State at now. Cached views go stale as time passes.
func (v *FileView) Refresh(now time.Time) {
	v.State = StateAt(v.ExpiresAt, v.DownloadCount, v.DownloadLimit, now)
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the envelope every boundary-facing operation returns.
type Result struct {
	Status    string    `json:"status"`
	Data      any       `json:"data"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Success builds a successful Result.
func Success(data any, message string, now time.Time) *Result {
	return &Result{Status: StatusSuccess, Data: data, Message: message, Timestamp: now}
}

// Failure builds an error Result.
func Failure(message string, now time.Time) *Result {
	return &Result{Status: StatusError, Message: message, Timestamp: now}
}
