package api

import (
	"encoding/json"
	"time"
)

const ServiceName = "sealbox.v1.FileService"

// Full method names, as seen by interceptors.
const (
	MethodUpload    = "/" + ServiceName + "/Upload"
	MethodDownload  = "/" + ServiceName + "/Download"
	MethodMetadata  = "/" + ServiceName + "/Metadata"
	MethodDelete    = "/" + ServiceName + "/Delete"
	MethodDashboard = "/" + ServiceName + "/Dashboard"
	MethodMyLogs    = "/" + ServiceName + "/MyLogs"
	MethodAllLogs   = "/" + ServiceName + "/AllLogs"
	MethodPing      = "/" + ServiceName + "/Ping"
)

// ChunkSize is the payload size of one streamed data message.
const ChunkSize = 64 * 1024

// UploadHeader opens an upload stream. Names holds one entry per file; the
// file contents follow as UploadChunk messages in file order.
type UploadHeader struct {
	Names         []string   `json:"names"`
	MimeTypes     []string   `json:"mime_types,omitempty"`
	Access        string     `json:"access_type,omitempty"`
	AllowedUsers  []string   `json:"allowed_users,omitempty"`
	DownloadLimit *int64     `json:"download_limit,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Password      string     `json:"password,omitempty"`
}

// UploadChunk is one client-stream message. The first message carries only
// Header; every later one carries Data for file Index.
type UploadChunk struct {
	Header *UploadHeader `json:"header,omitempty"`
	Index  int           `json:"index"`
	Data   []byte        `json:"data,omitempty"`
}

// FileRequest addresses one file.
type FileRequest struct {
	ID       string `json:"id"`
	Password string `json:"password,omitempty"`
}

// DownloadHeader precedes the plaintext of a download.
type DownloadHeader struct {
	Name     string          `json:"name"`
	MimeType string          `json:"mime_type"`
	Size     int64           `json:"size"`
	File     json.RawMessage `json:"file,omitempty"`
}

// DownloadChunk is one server-stream message: a header first, then data.
type DownloadChunk struct {
	Header *DownloadHeader `json:"header,omitempty"`
	Data   []byte          `json:"data,omitempty"`
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// Result mirrors the server's result envelope with the payload left raw.
type Result struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}
