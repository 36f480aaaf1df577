package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

const mediaColumns = `id, title, asset_url, storage_path, media_type, grid_row, grid_column, row_span, col_span, created_at`

// mediaRepository implements MediaRepository
type mediaRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMediaRepository creates a new media grid repository
func NewMediaRepository(db *sql.DB, logger *zap.Logger) *mediaRepository {
	return &mediaRepository{
		db:     db,
		logger: logger,
	}
}

func scanMediaItem(row rowScanner) (*models.MediaItem, error) {
	item := &models.MediaItem{}
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.AssetURL,
		&item.StoragePath,
		&item.MediaType,
		&item.GridRow,
		&item.GridColumn,
		&item.RowSpan,
		&item.ColSpan,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create inserts a grid cell
func (r *mediaRepository) Create(ctx context.Context, item *models.MediaItem) error {
	query := `
		INSERT INTO media_items (title, asset_url, storage_path, media_type, grid_row, grid_column, row_span, col_span)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.Title,
		item.AssetURL,
		item.StoragePath,
		item.MediaType,
		item.GridRow,
		item.GridColumn,
		item.RowSpan,
		item.ColSpan,
	)
	if err != nil {
		r.logger.Error("failed to create media item", zap.Error(err))
		return fmt.Errorf("failed to create media item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = int(id)
	return nil
}

// GetByID retrieves a grid cell
func (r *mediaRepository) GetByID(ctx context.Context, id int) (*models.MediaItem, error) {
	query := `SELECT ` + mediaColumns + ` FROM media_items WHERE id = ?`

	item, err := scanMediaItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media item not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get media item", zap.Error(err), zap.Int("media_id", id))
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return item, nil
}

// List returns all grid cells ordered by row and column
func (r *mediaRepository) List(ctx context.Context) ([]models.MediaItem, error) {
	query := `SELECT ` + mediaColumns + ` FROM media_items ORDER BY grid_row, grid_column, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list media items", zap.Error(err))
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	defer rows.Close()

	items := make([]models.MediaItem, 0)
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			r.logger.Error("failed to scan media item", zap.Error(err))
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media items: %w", err)
	}
	return items, nil
}

// Update stores the title and placement of a grid cell
func (r *mediaRepository) Update(ctx context.Context, item *models.MediaItem) error {
	query := `
		UPDATE media_items
		SET title = ?, grid_row = ?, grid_column = ?, row_span = ?, col_span = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		item.Title,
		item.GridRow,
		item.GridColumn,
		item.RowSpan,
		item.ColSpan,
		item.ID,
	)
	if err != nil {
		r.logger.Error("failed to update media item", zap.Error(err), zap.Int("media_id", item.ID))
		return fmt.Errorf("failed to update media item: %w", err)
	}
	return requireAffected(r.logger, result, "media item")
}

// Delete removes a grid cell
func (r *mediaRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("failed to delete media item", zap.Error(err), zap.Int("media_id", id))
		return fmt.Errorf("failed to delete media item: %w", err)
	}
	return requireAffected(r.logger, result, "media item")
}
