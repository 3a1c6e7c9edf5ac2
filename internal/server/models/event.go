package models

import "time"

// EventType classifies an audit log entry.
type EventType string

const (
	EventFileUpload         EventType = "file_upload"
	EventFileDownload       EventType = "file_download"
	EventFileMetadataAccess EventType = "file_metadata_access"
	EventFileDeletion       EventType = "file_deletion"
	EventDashboardAccess    EventType = "dashboard_access"
)

// Event is an append-only audit entry. FileIDs are weak references and may
// name files that no longer exist.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"event_type"`
	UserID    string    `json:"user_id"`
	FileIDs   []string  `json:"file_ids"`
	Detail    string    `json:"details"`
	CreatedAt time.Time `json:"timestamp"`
}
