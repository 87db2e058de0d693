package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docflow/api/internal/ids"
	"docflow/api/internal/models"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNotPending is returned when a transition loses the row guard:
	// the document is no longer (or never was) in the pending status.
	ErrNotPending = errors.New("document not pending")
)

const documentColumns = `
	id, filename, bucket, object_key, size_bytes, content_type, status,
	uploaded_by, approved_by, approval_date, approval_comment, created_at, updated_at
`

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc models.Document) error {
	const query = `
		INSERT INTO documents (
			id, filename, bucket, object_key, size_bytes, content_type, status,
			uploaded_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.Filename,
		doc.Bucket,
		doc.ObjectKey,
		doc.SizeBytes,
		doc.ContentType,
		doc.Status,
		doc.UploadedBy,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.pool.QueryRow(ctx, query, id))
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents WHERE uploaded_by = $1 ORDER BY created_at DESC`
	return r.queryDocuments(ctx, query, ownerID)
}

func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryDocuments(ctx, query, limit, offset)
}

// SearchFilter narrows the admin document listing. Zero values mean
// "no constraint" except Limit, which the caller must set.
type SearchFilter struct {
	Status        models.DocumentStatus
	Filename      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

func (r *DocumentRepository) Search(ctx context.Context, filter SearchFilter) ([]models.Document, int, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Filename != "" {
		conditions = append(conditions, "filename ILIKE "+arg("%"+filter.Filename+"%"))
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.CreatedAfter))
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "created_at <= "+arg(*filter.CreatedBefore))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListApproved serves the public read-only listing: approved documents only.
func (r *DocumentRepository) ListApproved(ctx context.Context, filename string, limit, offset int) ([]models.Document, int, error) {
	where := ` WHERE status = 'approved'`
	args := []any{}
	if filename != "" {
		args = append(args, "%"+filename+"%")
		where += fmt.Sprintf(" AND filename ILIKE $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit)
	limitPos := len(args)
	args = append(args, offset)

	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, limitPos, limitPos+1)

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) CountByStatus(ctx context.Context, status models.DocumentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM documents WHERE status = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, status).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes the document row. History rows cascade with it; the
// audit trail that outlives the document is the dispatcher's log stream.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Transition moves a pending document to a terminal status and appends the
// matching history entry in one transaction: both commit or neither does.
// The row guard (status = 'pending') serializes concurrent attempts; the
// loser sees zero rows updated and gets ErrNotPending.
func (r *DocumentRepository) Transition(
	ctx context.Context,
	docID string,
	target models.DocumentStatus,
	actorID string,
	comment *string,
) (models.Document, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	const update = `
		UPDATE documents
		SET status = $2,
		    approved_by = $3,
		    approval_date = $4,
		    approval_comment = $5,
		    updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + documentColumns

	doc, err := scanDocument(tx.QueryRow(ctx, update, docID, target, actorID, now, comment))
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return models.Document{}, ErrNotPending
		}
		return models.Document{}, err
	}

	const insert = `
		INSERT INTO document_status_history (id, document_id, status, changed_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insert, ids.NewSortable(), docID, target, actorID, comment, now); err != nil {
		return models.Document{}, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Document{}, fmt.Errorf("commit transition: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var doc models.Document
	if err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Bucket,
		&doc.ObjectKey,
		&doc.SizeBytes,
		&doc.ContentType,
		&doc.Status,
		&doc.UploadedBy,
		&doc.ApprovedBy,
		&doc.ApprovalDate,
		&doc.ApprovalComment,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	return doc, nil
}
