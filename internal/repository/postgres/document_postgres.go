package postgres

import (
	"context"
	"database/sql"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, user_id, title, original_file_name, mime_type, size_bytes, storage_path, source, status, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var size sql.NullInt64
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Title,
		&d.OriginalFileName,
		&d.MimeType,
		&size,
		&d.StoragePath,
		&d.Source,
		&d.Status,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if size.Valid {
		d.SizeBytes = &size.Int64
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, user_id, title, original_file_name, mime_type, size_bytes, storage_path, source, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + documentColumns
	var size sql.NullInt64
	if doc.SizeBytes != nil {
		size = sql.NullInt64{Int64: *doc.SizeBytes, Valid: true}
	}
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.OriginalFileName,
		doc.MimeType,
		size,
		doc.StoragePath,
		doc.Source,
		doc.Status,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByOwnerAndID fetches a single document scoped to its owner.
// A row owned by another user yields sql.ErrNoRows, same as no row at all.
func (r *DocumentPostgres) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1 AND user_id = $2
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id, ownerID))
}

// ListByOwner returns all documents for one owner ordered by creation time descending.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID string) ([]model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document row scoped to its owner. Missing rows are not an error.
func (r *DocumentPostgres) Delete(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
