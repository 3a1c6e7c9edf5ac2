// Package events stores the append-only audit log. Rows are never updated
// or deleted, and file references are plain ids without foreign keys so an
// entry outlives the file it mentions.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.Event) error {
	fileIDs := e.FileIDs
	if fileIDs == nil {
		fileIDs = []string{}
	}
	ids, err := json.Marshal(fileIDs)
	if err != nil {
		return fmt.Errorf("encode file ids: %w", err)
	}

	query := `INSERT INTO events (id, event_type, user_id, file_ids, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, e.ID, string(e.Type), e.UserID, string(ids), e.Detail, e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByUser returns up to limit entries produced by userID, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Event, error) {
	query := `SELECT id, event_type, user_id, file_ids, details, created_at FROM events
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

// ListAll returns up to limit entries across all users, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `SELECT id, event_type, user_id, file_ids, details, created_at FROM events
		ORDER BY created_at DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []*models.Event
	for rows.Next() {
		var (
			e   models.Event
			typ string
			ids string
		)
		if err := rows.Scan(&e.ID, &typ, &e.UserID, &ids, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = models.EventType(typ)
		if ids != "" {
			if err := json.Unmarshal([]byte(ids), &e.FileIDs); err != nil {
				return nil, fmt.Errorf("event %s: decode file ids: %w", e.ID, err)
			}
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
