package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"docflow/api/internal/models"
)

type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// ListByDocument returns the audit trail newest first. A document that
// never left pending yields an empty slice, not an error.
func (r *HistoryRepository) ListByDocument(ctx context.Context, documentID string) ([]models.StatusHistoryEntry, error) {
	const query = `
		SELECT id, document_id, status, changed_by, comment, created_at
		FROM document_status_history
		WHERE document_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.StatusHistoryEntry, 0)
	for rows.Next() {
		var entry models.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.DocumentID,
			&entry.Status,
			&entry.ChangedBy,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
