package model

import "time"

// Document lifecycle states. Ingestion paths beyond direct upload may
// introduce further states later.
const (
	StatusUploaded = "UPLOADED"
)

// SourceUpload marks records created through the upload endpoint.
const SourceUpload = "upload"

// Document represents a stored file owned by a single user.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	OriginalFileName string    `json:"original_file_name"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        *int64    `json:"size_bytes"`
	StoragePath      string    `json:"storage_path"`
	Source           string    `json:"source"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
