package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

const fileColumns = `id, owner_id, name, storage_key, size, mime_type, access_mode, allowed_users, password_hash,
		download_count, download_limit, uploaded_at, expires_at,
		wrapped_key, key_iv, key_tag, stream_iv, stream_tag`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file record. The envelope must be complete.
func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	if !f.Envelope.Complete() {
		return common.Validationf("incomplete encryption envelope for file %s", f.ID)
	}

	allowed, err := json.Marshal(nonNil(f.AllowedUsers))
	if err != nil {
		return fmt.Errorf("encode allowed users: %w", err)
	}

	var limit sql.NullInt64
	if f.DownloadLimit != nil {
		limit = sql.NullInt64{Int64: *f.DownloadLimit, Valid: true}
	}

	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.Name, f.StorageKey, f.Size, f.MimeType, f.Access.String(), string(allowed), f.PasswordHash,
		f.DownloadCount, limit, f.UploadedAt, f.ExpiresAt,
		f.Envelope.WrappedKey, f.Envelope.KeyIV, f.Envelope.KeyTag, f.Envelope.StreamIV, f.Envelope.StreamTag)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// GetByID returns the file with id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// IncrementDownload counts one download and moves the expiry to expiresAt,
// but only while the file is neither expired at now nor out of downloads.
// The check and the write are one statement, so concurrent callers can never
// push the counter past the limit. It returns the new counter and expiry, or
// common.ErrConditionFailed when the file is missing or no longer eligible.
func (r *PostgresRepository) IncrementDownload(ctx context.Context, id string, now, expiresAt time.Time) (int64, time.Time, error) {
	query := `
		UPDATE files SET download_count = download_count + 1, expires_at = $3
		WHERE id = $1
		  AND expires_at >= $2
		  AND (download_limit IS NULL OR download_count < download_limit)
		RETURNING download_count, expires_at
	`
	var (
		count int64
		exp   time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, id, now, expiresAt).Scan(&count, &exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, common.ErrConditionFailed
		}
		return 0, time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return count, exp, nil
}

// ExtendExpiry moves the expiry of a still-live file to expiresAt.
// It returns common.ErrConditionFailed when the file is missing or expired.
func (r *PostgresRepository) ExtendExpiry(ctx context.Context, id string, now, expiresAt time.Time) (time.Time, error) {
	query := `UPDATE files SET expires_at = $3 WHERE id = $1 AND expires_at >= $2 RETURNING expires_at`

	var exp time.Time
	if err := r.db.QueryRowContext(ctx, query, id, now, expiresAt).Scan(&exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrConditionFailed
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return exp, nil
}

// Delete removes the file owned by ownerID. Exactly one row must be affected,
// otherwise common.ErrorNotFound is returned.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM files WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	var (
		f       models.File
		mode    string
		allowed string
		limit   sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.StorageKey, &f.Size, &f.MimeType, &mode, &allowed, &f.PasswordHash,
		&f.DownloadCount, &limit, &f.UploadedAt, &f.ExpiresAt,
		&f.Envelope.WrappedKey, &f.Envelope.KeyIV, &f.Envelope.KeyTag, &f.Envelope.StreamIV, &f.Envelope.StreamTag)
	if err != nil {
		return nil, err
	}

	if f.Access, err = models.ParseAccessMode(mode); err != nil {
		return nil, fmt.Errorf("file %s: %w", f.ID, err)
	}
	if allowed != "" {
		if err := json.Unmarshal([]byte(allowed), &f.AllowedUsers); err != nil {
			return nil, fmt.Errorf("file %s: decode allowed users: %w", f.ID, err)
		}
	}
	if limit.Valid {
		l := limit.Int64
		f.DownloadLimit = &l
	}
	return &f, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
