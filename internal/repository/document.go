package repository

import (
	"context"

	"docvault/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations.
//
// Every read and mutation is scoped to an owner. Lookups filter by both
// document id and owner id in a single query, so a record that exists but
// belongs to someone else is indistinguishable from a missing one
// (sql.ErrNoRows either way).
type DocumentRepository interface {
	// Create inserts a new document record in a single committed statement.
	// Returns the stored document (may include values set by the DB).
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByOwnerAndID returns the document with the given id owned by
	// ownerID, or sql.ErrNoRows.
	FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Document, error)

	// ListByOwner returns every document owned by ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Document, error)

	// Delete removes the document with the given id owned by ownerID.
	// It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, ownerID, id string) error
}
