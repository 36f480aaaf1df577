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

// setupEnrollmentTestRepository creates an enrollment repository with a mock database
func setupEnrollmentTestRepository(t *testing.T) (*enrollmentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewEnrollmentRepository(db, zap.NewNop())

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func TestEnrollmentRepository_Grant(t *testing.T) {
	t.Run("inserts enrollment and user course", func(t *testing.T) {
		repo, mock, cleanup := setupEnrollmentTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO enrollments \(user_id, course_id, payment_id\) VALUES \(\?, \?, \?\) ON DUPLICATE KEY UPDATE`).
			WithArgs(1, 2, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT IGNORE INTO user_courses`).
			WithArgs(1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Grant(context.Background(), 1, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user course failure rolls back", func(t *testing.T) {
		repo, mock, cleanup := setupEnrollmentTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO enrollments`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT IGNORE INTO user_courses`).WillReturnError(errors.New("fk violation"))
		mock.ExpectRollback()

		assert.Error(t, repo.Grant(context.Background(), 1, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnrollmentRepository_Exists(t *testing.T) {
	repo, mock, cleanup := setupEnrollmentTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM enrollments WHERE user_id = \? AND course_id = \?\)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepository_SetLessonCompleted(t *testing.T) {
	tests := []struct {
		name             string
		completed        bool
		setupMock        func(sqlmock.Sqlmock)
		expectedProgress int
		expectedLessons  []int
		expectedError    bool
	}{
		{
			name:      "mark complete",
			completed: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT IGNORE INTO lesson_completions`).
					WithArgs(1, 2, 5).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lessons WHERE course_id = \?`).
					WithArgs(2).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
				mock.ExpectQuery(`SELECT lesson_id FROM lesson_completions WHERE user_id = \? AND course_id = \?`).
					WithArgs(1, 2).
					WillReturnRows(sqlmock.NewRows([]string{"lesson_id"}).AddRow(3).AddRow(5))
				mock.ExpectExec(`UPDATE enrollments SET progress = \? WHERE user_id = \? AND course_id = \?`).
					WithArgs(50, 1, 2).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedProgress: 50,
			expectedLessons:  []int{3, 5},
		},
		{
			name:      "mark incomplete",
			completed: false,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`DELETE FROM lesson_completions WHERE user_id = \? AND lesson_id = \?`).
					WithArgs(1, 5).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lessons`).
					WithArgs(2).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
				mock.ExpectQuery(`SELECT lesson_id FROM lesson_completions`).
					WithArgs(1, 2).
					WillReturnRows(sqlmock.NewRows([]string{"lesson_id"}))
				mock.ExpectExec(`UPDATE enrollments SET progress`).
					WithArgs(0, 1, 2).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedProgress: 0,
			expectedLessons:  []int{},
		},
		{
			name:      "insert failure",
			completed: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT IGNORE INTO lesson_completions`).
					WillReturnError(errors.New("database error"))
				mock.ExpectRollback()
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupEnrollmentTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			progress, lessons, err := repo.SetLessonCompleted(context.Background(), 1, 2, 5, tt.completed)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedProgress, progress)
				assert.Equal(t, tt.expectedLessons, lessons)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEnrollmentRepository_ListByUser(t *testing.T) {
	repo, mock, cleanup := setupEnrollmentTestRepository(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT c.id, c.slug, c.title, c.thumbnail_url, e.progress, e.created_at FROM enrollments e`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "title", "thumbnail_url", "progress", "created_at"}).
			AddRow(2, "go-basics", "Go basics", "", 50, now).
			AddRow(3, "sql", "SQL", "", 0, now))
	mock.ExpectQuery(`SELECT course_id, lesson_id FROM lesson_completions WHERE user_id = \?`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "lesson_id"}).AddRow(2, 7).AddRow(2, 8))

	items, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []int{7, 8}, items[0].CompletedLessons)
	assert.Equal(t, []int{}, items[1].CompletedLessons)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepository_Revoke(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock, cleanup := setupEnrollmentTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM enrollments WHERE user_id = \? AND course_id = \?`).
			WithArgs(1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM user_courses`).WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM lesson_completions`).WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		assert.NoError(t, repo.Revoke(context.Background(), 1, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not enrolled", func(t *testing.T) {
		repo, mock, cleanup := setupEnrollmentTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM enrollments`).WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Revoke(context.Background(), 1, 2), models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
