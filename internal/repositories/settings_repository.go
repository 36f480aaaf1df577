package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// settingsRepository implements SettingsRepository
type settingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new site settings repository
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *settingsRepository {
	return &settingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll returns every setting as a map
func (r *settingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT `key`, value FROM settings")
	if err != nil {
		r.logger.Error("failed to get settings", zap.Error(err))
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}

// Upsert writes the given settings in one transaction
func (r *settingsRepository) Upsert(ctx context.Context, settings map[string]string) error {
	return withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		query := "INSERT INTO settings (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
		for key, value := range settings {
			if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
				r.logger.Error("failed to upsert setting", zap.Error(err), zap.String("key", key))
				return fmt.Errorf("failed to upsert setting %s: %w", key, err)
			}
		}
		return nil
	})
}
