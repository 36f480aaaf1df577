package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

const lessonColumns = `id, course_id, sub_course_id, title, video_id, video_url, duration_seconds, position, is_preview`

// lessonRepository implements LessonRepository
type lessonRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLessonRepository creates a new lesson repository
func NewLessonRepository(db *sql.DB, logger *zap.Logger) *lessonRepository {
	return &lessonRepository{
		db:     db,
		logger: logger,
	}
}

func scanLesson(row rowScanner) (*models.Lesson, error) {
	lesson := &models.Lesson{}
	var subCourseID sql.NullInt64
	err := row.Scan(
		&lesson.ID,
		&lesson.CourseID,
		&subCourseID,
		&lesson.Title,
		&lesson.VideoID,
		&lesson.VideoURL,
		&lesson.DurationSeconds,
		&lesson.Position,
		&lesson.IsPreview,
	)
	if err != nil {
		return nil, err
	}
	lesson.SubCourseID = intPtr(subCourseID)
	return lesson, nil
}

// Create inserts a new lesson
func (r *lessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	query := `
		INSERT INTO lessons (course_id, sub_course_id, title, video_id, video_url, duration_seconds, position, is_preview)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		lesson.CourseID,
		nullInt(lesson.SubCourseID),
		lesson.Title,
		lesson.VideoID,
		lesson.VideoURL,
		lesson.DurationSeconds,
		lesson.Position,
		lesson.IsPreview,
	)
	if err != nil {
		r.logger.Error("failed to create lesson", zap.Error(err), zap.Int("course_id", lesson.CourseID))
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	lesson.ID = int(id)
	return nil
}

// GetByID retrieves a lesson
func (r *lessonRepository) GetByID(ctx context.Context, id int) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = ?`

	lesson, err := scanLesson(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lesson not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get lesson", zap.Error(err), zap.Int("lesson_id", id))
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

// ListByCourse returns every lesson of a course in display order
func (r *lessonRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = ? ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		r.logger.Error("failed to list lessons", zap.Error(err), zap.Int("course_id", courseID))
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]models.Lesson, 0)
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			r.logger.Error("failed to scan lesson", zap.Error(err))
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, *lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lessons: %w", err)
	}
	return lessons, nil
}

// Update stores the editable fields of a lesson
func (r *lessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	query := `
		UPDATE lessons
		SET sub_course_id = ?, title = ?, duration_seconds = ?, position = ?, is_preview = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullInt(lesson.SubCourseID),
		lesson.Title,
		lesson.DurationSeconds,
		lesson.Position,
		lesson.IsPreview,
		lesson.ID,
	)
	if err != nil {
		r.logger.Error("failed to update lesson", zap.Error(err), zap.Int("lesson_id", lesson.ID))
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	return requireAffected(r.logger, result, "lesson")
}

// UpdateVideo stores the CDN reference of a lesson
func (r *lessonRepository) UpdateVideo(ctx context.Context, id int, videoID, videoURL string) error {
	query := `UPDATE lessons SET video_id = ?, video_url = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, videoID, videoURL, id)
	if err != nil {
		r.logger.Error("failed to update lesson video", zap.Error(err), zap.Int("lesson_id", id))
		return fmt.Errorf("failed to update lesson video: %w", err)
	}
	return requireAffected(r.logger, result, "lesson")
}

// Delete removes a lesson
func (r *lessonRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("failed to delete lesson", zap.Error(err), zap.Int("lesson_id", id))
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	return requireAffected(r.logger, result, "lesson")
}
