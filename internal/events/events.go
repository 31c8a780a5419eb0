package events

import (
	"context"
	"time"

	"docvault/internal/model"
)

// Subjects for document lifecycle events. Downstream ingestion pipelines
// (embedding, indexing) subscribe to these; none of that runs in-process.
const (
	SubjectUploaded = "documents.uploaded"
	SubjectDeleted  = "documents.deleted"
)

// DocumentEvent is the JSON payload published on lifecycle subjects.
type DocumentEvent struct {
	DocumentID       string    `json:"document_id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title,omitempty"`
	OriginalFileName string    `json:"original_file_name,omitempty"`
	MimeType         string    `json:"mime_type,omitempty"`
	SizeBytes        *int64    `json:"size_bytes,omitempty"`
	StoragePath      string    `json:"storage_path,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher emits document lifecycle events. Publishing is best-effort:
// the service logs failures and never fails a request over them.
type Publisher interface {
	DocumentUploaded(ctx context.Context, doc *model.Document) error
	DocumentDeleted(ctx context.Context, ownerID, documentID string) error
	Close()
}

// Noop is the Publisher used when no event bus is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) DocumentUploaded(ctx context.Context, doc *model.Document) error { return nil }

func (Noop) DocumentDeleted(ctx context.Context, ownerID, documentID string) error { return nil }

func (Noop) Close() {}
