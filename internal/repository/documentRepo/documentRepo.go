package documentRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"document-service/internal/model/document"
)

// Repository is the CRUD boundary over document metadata. Implementations
// must make CompareAndSwapVersion atomic with its field update: there is no
// read-modify-write window visible to concurrent callers.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error)
	ListActive(ctx context.Context) ([]*document.Document, error)
	ListTrashed(ctx context.Context) ([]*document.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error)
	Rename(ctx context.Context, id uuid.UUID, newName string) error
	SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	RestoreMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FinalizeLocator(ctx context.Context, id uuid.UUID, locator, contentURL string) error
	CompareAndSwapVersion(ctx context.Context, id uuid.UUID, expected int, upd document.ContentUpdate) (bool, error)
}

const columns = `id, owner_id, file_name, file_type, file_size, storage_key,
	 content_url, version, snapshot, is_favorite, is_deleted, deleted_at,
	 last_saved_at, last_saved_by, created_at`

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (`+columns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		doc.ID, doc.OwnerID, doc.Name, doc.Class, doc.Size, doc.StorageKey,
		doc.ContentURL, doc.Version, doc.Snapshot, doc.IsFavorite, doc.IsDeleted,
		doc.DeletedAt, doc.LastSavedAt, doc.LastSavedBy, doc.CreatedAt)
	return err
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var doc document.Document
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.Class, &doc.Size,
		&doc.StorageKey, &doc.ContentURL, &doc.Version, &doc.Snapshot,
		&doc.IsFavorite, &doc.IsDeleted, &doc.DeletedAt,
		&doc.LastSavedAt, &doc.LastSavedBy, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	return scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM documents WHERE id = $1`, id))
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]*document.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Listings skip rows still in the blank-create transient state (empty
// storage_key): the record only becomes visible once the blob is finalized.

func (r *DocumentRepository) ListActive(ctx context.Context) ([]*document.Document, error) {
	return r.list(ctx,
		`SELECT `+columns+` FROM documents
		 WHERE NOT is_deleted AND storage_key <> '' ORDER BY created_at DESC`)
}

func (r *DocumentRepository) ListTrashed(ctx context.Context) ([]*document.Document, error) {
	return r.list(ctx,
		`SELECT `+columns+` FROM documents
		 WHERE is_deleted AND storage_key <> '' ORDER BY deleted_at DESC`)
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error) {
	return r.list(ctx,
		`SELECT `+columns+` FROM documents
		 WHERE owner_id = $1 AND NOT is_deleted AND storage_key <> ''
		 ORDER BY created_at DESC`, ownerID)
}

func (r *DocumentRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Rename(ctx context.Context, id uuid.UUID, newName string) error {
	return r.exec(ctx, `UPDATE documents SET file_name = $1 WHERE id = $2`, newName, id)
}

func (r *DocumentRepository) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	return r.exec(ctx, `UPDATE documents SET is_favorite = $1 WHERE id = $2`, favorite, id)
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx,
		`UPDATE documents SET is_deleted = TRUE, deleted_at = $1 WHERE id = $2`, at, id)
}

func (r *DocumentRepository) Restore(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx,
		`UPDATE documents SET is_deleted = FALSE, deleted_at = NULL WHERE id = $1`, id)
}

// RestoreMany restores every trashed id in the batch. Ids that are missing
// or not trashed are skipped, never a batch failure.
func (r *DocumentRepository) RestoreMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET is_deleted = FALSE, deleted_at = NULL
		 WHERE id = ANY($1) AND is_deleted`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

// FinalizeLocator completes the transient blank-file creation state: the row
// exists with an empty storage_key until the blob write lands.
func (r *DocumentRepository) FinalizeLocator(ctx context.Context, id uuid.UUID, locator, contentURL string) error {
	return r.exec(ctx,
		`UPDATE documents SET storage_key = $1, content_url = $2 WHERE id = $3`,
		locator, contentURL, id)
}

// CompareAndSwapVersion bumps the version by exactly one together with the
// content fields, but only if the stored version still matches expected.
// Returns false when a concurrent writer got there first.
func (r *DocumentRepository) CompareAndSwapVersion(ctx context.Context, id uuid.UUID, expected int, upd document.ContentUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents
		 SET version = version + 1, file_size = $1, snapshot = $2,
		     last_saved_at = $3, last_saved_by = $4
		 WHERE id = $5 AND version = $6`,
		upd.Size, upd.Snapshot, upd.SavedAt, upd.SavedBy, id, expected)
	if err != nil {
		return false, fmt.Errorf("compare-and-swap version: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
