package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/events"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var (
	ErrOwnerRequired = errors.New("owner id is required")
	ErrIDRequired    = errors.New("id is required")
	ErrReaderNil     = errors.New("reader is nil")
	ErrNotFound      = errors.New("document not found")

	// ErrFileTooLarge rejects an upload before any store write.
	ErrFileTooLarge = errors.New("file too large")

	// Storage failures are surfaced as distinct gateway-style conditions;
	// the underlying cause is appended to the message for diagnostics.
	ErrStorageWrite  = errors.New("storage write failed")
	ErrStorageRead   = errors.New("storage read failed")
	ErrStorageDelete = errors.New("storage delete failed")
)

// DefaultFileName is used when the upload carries no usable file name.
const DefaultFileName = "upload.bin"

// DocumentService defines the use cases for handling per-user documents.
// All operations are scoped to the calling owner; a document owned by
// someone else behaves exactly like a missing one.
type DocumentService interface {
	// Upload streams the content to object storage under a deterministic
	// per-owner key, then records metadata in a single commit. If the
	// commit fails the just-written blob is deleted best-effort.
	// Pass size < 0 when the length is unknown; a seekable reader is then
	// measured by seeking, and a non-seekable one is stored without a size.
	Upload(ctx context.Context, ownerID string, r io.Reader, originalFilename, title, contentType string, size int64) (*model.Document, error)

	// List returns all documents of the owner, newest first.
	List(ctx context.Context, ownerID string) ([]model.Document, error)

	// Download returns the blob content as a stream plus the record, for
	// the caller to forward chunk by chunk.
	Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *model.Document, error)

	// Delete removes the blob first, then the metadata row.
	Delete(ctx context.Context, ownerID, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store       storage.Storage
	repo        repository.DocumentRepository
	events      events.Publisher
	maxUploadMB int
}

// NewDocumentService constructs a new DocumentService. maxUploadMB of
// zero disables the size limit; a nil publisher disables events.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, pub events.Publisher, maxUploadMB int) DocumentService {
	if pub == nil {
		pub = events.NewNoop()
	}
	return &documentService{store: store, repo: repo, events: pub, maxUploadMB: maxUploadMB}
}

// sanitizeFileName strips any directory components (either separator)
// from an uploaded file name.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "" || base == "." || base == "/" || base == ".." {
		return DefaultFileName
	}
	return base
}

// StoragePath derives the blob key for a document. Derived once at
// creation and never recomputed for an existing record.
func StoragePath(ownerID, documentID, fileName string) string {
	return fmt.Sprintf("%s/%s/original/%s", ownerID, documentID, fileName)
}

func (s *documentService) Upload(ctx context.Context, ownerID string, r io.Reader, originalFilename, title, contentType string, size int64) (*model.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	safeName := sanitizeFileName(originalFilename)
	docID := uuid.New().String()
	key := StoragePath(ownerID, docID, safeName)

	var sizeBytes *int64
	if size >= 0 {
		sizeBytes = &size
	} else if seeker, ok := r.(io.Seeker); ok {
		// Measure by seeking end and back; an unseekable or failing stream
		// is accepted with an unknown size rather than rejected.
		if n, err := seeker.Seek(0, io.SeekEnd); err == nil {
			if _, err := seeker.Seek(0, io.SeekStart); err == nil {
				sizeBytes = &n
			}
		}
	}

	if s.maxUploadMB > 0 && sizeBytes != nil {
		maxBytes := int64(s.maxUploadMB) * 1024 * 1024
		if *sizeBytes > maxBytes {
			return nil, fmt.Errorf("%w (>%dMB)", ErrFileTooLarge, s.maxUploadMB)
		}
	}

	putSize := int64(-1)
	if sizeBytes != nil {
		putSize = *sizeBytes
	}
	if _, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        putSize,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": safeName,
		},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	if title == "" {
		title = safeName
	}
	doc := &model.Document{
		ID:               docID,
		OwnerID:          ownerID,
		Title:            title,
		OriginalFileName: safeName,
		MimeType:         contentType,
		SizeBytes:        sizeBytes,
		StoragePath:      key,
		Source:           model.SourceUpload,
		Status:           model.StatusUploaded,
		CreatedAt:        time.Now().UTC(),
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Compensate: delete the blob just written. Errors from the
		// compensation itself are swallowed; the orphaned blob is the
		// accepted residual failure mode.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logJSON("error", "upload_compensation_failed", map[string]any{
				"document_id":  docID,
				"storage_path": key,
				"error":        delErr.Error(),
			})
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if err := s.events.DocumentUploaded(ctx, stored); err != nil {
		logJSON("warn", "event_publish_failed", map[string]any{
			"subject":     events.SubjectUploaded,
			"document_id": stored.ID,
			"error":       err.Error(),
		})
	}
	return stored, nil
}

func (s *documentService) List(ctx context.Context, ownerID string) ([]model.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *documentService) Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return rc, doc, nil
}

func (s *documentService) Delete(ctx context.Context, ownerID, id string) error {
	doc, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	// Blob first. If this fails the row stays, leaving the pre-delete
	// state intact rather than a row pointing at a missing blob.
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageDelete, err)
	}

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		// Blob is already gone; the surviving row is a known gap with no
		// compensation. Surface it, never mask it as success.
		logJSON("error", "residual_inconsistency", map[string]any{
			"document_id":  id,
			"owner_id":     ownerID,
			"storage_path": doc.StoragePath,
			"error":        err.Error(),
		})
		return fmt.Errorf("db delete failed: %w", err)
	}

	if err := s.events.DocumentDeleted(ctx, ownerID, id); err != nil {
		logJSON("warn", "event_publish_failed", map[string]any{
			"subject":     events.SubjectDeleted,
			"document_id": id,
			"error":       err.Error(),
		})
	}
	return nil
}

// findOwned maps both a missing row and a row owned by someone else to
// the same ErrNotFound; the repository query cannot tell them apart.
func (s *documentService) findOwned(ctx context.Context, ownerID, id string) (*model.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// jsonLogger writes one JSON object per line; it carries its own zero
// flags instead of touching the process-global logger.
var jsonLogger = log.New(os.Stdout, "", 0)

func logJSON(level, event string, fields map[string]any) {
	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"component": "service",
		"event":     event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if b, err := json.Marshal(entry); err == nil {
		jsonLogger.Println(string(b))
	}
}
