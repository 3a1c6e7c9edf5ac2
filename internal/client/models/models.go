// Package models holds the client-side view of server payloads.
package models

import (
	"fmt"
	"time"
)

// FileInfo is a file's public metadata as returned by the server.
type FileInfo struct {
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
	Status            string    `json:"status"`
	Previewable       bool      `json:"previewable"`
	SharedLink        string    `json:"shared_link,omitempty"`
}

// Downloads renders the counter as "n" or "n/limit".
func (f *FileInfo) Downloads() string {
	if f.DownloadLimit == nil {
		return fmt.Sprintf("%d", f.DownloadCount)
	}
	return fmt.Sprintf("%d/%d", f.DownloadCount, *f.DownloadLimit)
}

// LogEntry is one audit event.
type LogEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	FileIDs   []string  `json:"file_ids"`
	Detail    string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}
