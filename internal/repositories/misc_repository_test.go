package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (sqlmock.Sqlmock, func() (*userTokenRepository, *mediaRepository, *settingsRepository, *statsRepository), func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	build := func() (*userTokenRepository, *mediaRepository, *settingsRepository, *statsRepository) {
		return NewUserTokenRepository(db, logger),
			NewMediaRepository(db, logger),
			NewSettingsRepository(db, logger),
			NewStatsRepository(db, logger)
	}

	return mock, build, func() { db.Close() }
}

func TestUserTokenRepository_UpdateToken(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		expectedErr error
	}{
		{name: "rotated", affected: 1},
		{name: "unknown token", affected: 0, expectedErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, build, cleanup := newMockDB(t)
			defer cleanup()
			repo, _, _, _ := build()

			mock.ExpectExec(`UPDATE user_tokens SET token = \?, created_at = CURRENT_TIMESTAMP WHERE token = \? AND user_id = \?`).
				WithArgs("new", "old", 3).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.UpdateToken(context.Background(), "old", "new", 3)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserTokenRepository_DeleteOlderThan(t *testing.T) {
	mock, build, cleanup := newMockDB(t)
	defer cleanup()
	repo, _, _, _ := build()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM user_tokens WHERE created_at < \?`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepository_List(t *testing.T) {
	mock, build, cleanup := newMockDB(t)
	defer cleanup()
	_, repo, _, _ := build()

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM media_items ORDER BY grid_row, grid_column, id`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "asset_url", "storage_path", "media_type",
			"grid_row", "grid_column", "row_span", "col_span", "created_at",
		}).
			AddRow(1, "hero", "https://cdn/hero.png", "media/hero.png", "image", 0, 0, 2, 3, now).
			AddRow(2, "promo", "https://cdn/promo.mp4", "", "video", 0, 3, 1, 1, now))

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.MediaTypeImage, items[0].MediaType)
	assert.Equal(t, 3, items[0].ColSpan)
	assert.Equal(t, "media/hero.png", items[0].StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepository_Delete(t *testing.T) {
	mock, build, cleanup := newMockDB(t)
	defer cleanup()
	_, repo, _, _ := build()

	mock.ExpectExec(`DELETE FROM media_items WHERE id = \?`).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 8), models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Upsert(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock, build, cleanup := newMockDB(t)
		defer cleanup()
		_, _, repo, _ := build()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO settings").
			WithArgs(models.SettingBankName, "Khan Bank").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Upsert(context.Background(), map[string]string{models.SettingBankName: "Khan Bank"})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure rolls back", func(t *testing.T) {
		mock, build, cleanup := newMockDB(t)
		defer cleanup()
		_, _, repo, _ := build()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO settings").WillReturnError(errors.New("database error"))
		mock.ExpectRollback()

		err := repo.Upsert(context.Background(), map[string]string{models.SettingBankName: "Khan Bank"})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettingsRepository_GetAll(t *testing.T) {
	mock, build, cleanup := newMockDB(t)
	defer cleanup()
	_, _, repo, _ := build()

	mock.ExpectQuery("SELECT `key`, value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("bank_name", "Khan Bank").
			AddRow("contact_email", "hi@course.mn"))

	settings, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bank_name": "Khan Bank", "contact_email": "hi@course.mn"}, settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_Dashboard(t *testing.T) {
	mock, build, cleanup := newMockDB(t)
	defer cleanup()
	_, _, _, repo := build()

	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM users\)`).
		WillReturnRows(sqlmock.NewRows([]string{"u", "c", "pc", "e", "cp", "pp", "rev"}).
			AddRow(10, 4, 3, 7, 6, 1, int64(300000)))

	stats, err := repo.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.DashboardStats{
		Users:             10,
		Courses:           4,
		PublishedCourses:  3,
		Enrollments:       7,
		CompletedPayments: 6,
		PendingPayments:   1,
		Revenue:           300000,
	}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
