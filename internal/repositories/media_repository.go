package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
	"go.uber.org/zap"
)

const mediaColumns = `id, scope_type, scope_id, kind, display_name, file_name, file_type, file_size, status, storage_key, created_at, updated_at`

// mediaRepository implements media repository operations on MySQL
type mediaRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *sql.DB, logger *zap.Logger) *mediaRepository {
	return &mediaRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new media record
func (r *mediaRepository) Create(ctx context.Context, record *models.MediaRecord) error {
	query := `
		INSERT INTO media_assets (` + mediaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Scope.Type,
		record.Scope.ID,
		record.Kind,
		record.DisplayName,
		record.FileName,
		record.FileType,
		nullableSize(record.FileSize),
		record.Status,
		record.StorageKey,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}

	return nil
}

// GetByID retrieves a media record by id
func (r *mediaRepository) GetByID(ctx context.Context, id string) (*models.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media_assets WHERE id = ? LIMIT 1`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media by id: %w", err)
	}

	return record, nil
}

// ListByScope retrieves the non-failed media of a scope in creation order
func (r *mediaRepository) ListByScope(ctx context.Context, scope models.OwnerScope) ([]models.MediaRecord, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media_assets
		WHERE scope_type = ? AND scope_id = ? AND status <> ?
		ORDER BY created_at, id
	`

	return r.list(ctx, query, scope.Type, scope.ID, models.AssetStatusFailed)
}

// ListStale retrieves course media that failed, or stayed pending since before cutoff
func (r *mediaRepository) ListStale(ctx context.Context, cutoff time.Time) ([]models.MediaRecord, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media_assets
		WHERE scope_type = ? AND (status = ? OR (status = ? AND created_at < ?))
		ORDER BY created_at, id
	`

	return r.list(ctx, query, models.ScopeTypeCourse, models.AssetStatusFailed, models.AssetStatusPending, cutoff)
}

func (r *mediaRepository) list(ctx context.Context, query string, args ...any) ([]models.MediaRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	records := make([]models.MediaRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media: %w", err)
	}

	return records, nil
}

// UpdateStatus sets the status of a media record and, when size is not nil, its size
func (r *mediaRepository) UpdateStatus(ctx context.Context, id string, status models.AssetStatus, size *int64) error {
	query := `UPDATE media_assets SET status = ?, file_size = COALESCE(?, file_size), updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, nullableSize(size), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update media status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrMediaNotFound
	}

	return nil
}

// DeleteByID deletes a media record by id
func (r *mediaRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM media_assets WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrMediaNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.MediaRecord, error) {
	record := &models.MediaRecord{}
	var size sql.NullInt64
	err := row.Scan(
		&record.ID,
		&record.Scope.Type,
		&record.Scope.ID,
		&record.Kind,
		&record.DisplayName,
		&record.FileName,
		&record.FileType,
		&size,
		&record.Status,
		&record.StorageKey,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if size.Valid {
		record.FileSize = models.Int64Ptr(size.Int64)
	}
	return record, nil
}

func nullableSize(size *int64) sql.NullInt64 {
	if size == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *size, Valid: true}
}
