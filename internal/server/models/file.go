// Package models defines server-side data models persisted in the database.
package models

import (
	"slices"
	"time"
)

// File is the authoritative record of one stored, encrypted upload.
// The ciphertext itself lives in the blob store under StorageKey.
type File struct {
	ID string
	// OwnerID is the principal that uploaded the file.
	OwnerID string
	// Name is the original filename supplied by the uploader.
	Name string
	// StorageKey is the blob-store key of the ciphertext.
	StorageKey string
	Size       int64
	MimeType   string

	Access AccessMode
	// AllowedUsers is consulted only when Access is AccessRestricted.
	AllowedUsers []string
	// PasswordHash is an encoded argon2id hash, empty when no share password is set.
	PasswordHash string

	DownloadCount int64
	// DownloadLimit is nil for unlimited downloads.
	DownloadLimit *int64

	UploadedAt time.Time
	ExpiresAt  time.Time

	Envelope Envelope
}

// Envelope carries the key material needed to decrypt a File. Every field is
// base64 text; all five come from a single save and are never set piecemeal.
type Envelope struct {
	WrappedKey string
	KeyIV      string
	KeyTag     string
	StreamIV   string
	StreamTag  string
}

// Complete reports whether every envelope field is populated.
func (e Envelope) Complete() bool {
	return e.WrappedKey != "" && e.KeyIV != "" && e.KeyTag != "" && e.StreamIV != "" && e.StreamTag != ""
}

// IsOwner reports whether principalID uploaded f.
func (f *File) IsOwner(principalID string) bool {
	return principalID != "" && f.OwnerID == principalID
}

// IsAllowed reports whether principalID is on the allow-list.
func (f *File) IsAllowed(principalID string) bool {
	return principalID != "" && slices.Contains(f.AllowedUsers, principalID)
}

// Expired reports whether now is past ExpiresAt.
func (f *File) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// State derives the lifecycle state of f at now.
func (f *File) State(now time.Time) FileState {
	return StateAt(f.ExpiresAt, f.DownloadCount, f.DownloadLimit, now)
}

// LimitReached reports whether the download limit, if any, is exhausted.
func (f *File) LimitReached() bool {
	return f.DownloadLimit != nil && f.DownloadCount >= *f.DownloadLimit
}

// HasPassword reports whether a share password protects f.
func (f *File) HasPassword() bool {
	return f.PasswordHash != ""
}
