package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

// subCourseRepository implements SubCourseRepository
type subCourseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubCourseRepository creates a new sub-course repository
func NewSubCourseRepository(db *sql.DB, logger *zap.Logger) *subCourseRepository {
	return &subCourseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new sub-course
func (r *subCourseRepository) Create(ctx context.Context, subCourse *models.SubCourse) error {
	query := `INSERT INTO sub_courses (course_id, title, position) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, subCourse.CourseID, subCourse.Title, subCourse.Position)
	if err != nil {
		r.logger.Error("failed to create sub-course", zap.Error(err), zap.Int("course_id", subCourse.CourseID))
		return fmt.Errorf("failed to create sub-course: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	subCourse.ID = int(id)
	return nil
}

// GetByID retrieves a sub-course
func (r *subCourseRepository) GetByID(ctx context.Context, id int) (*models.SubCourse, error) {
	query := `SELECT id, course_id, title, position FROM sub_courses WHERE id = ?`

	subCourse := &models.SubCourse{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&subCourse.ID,
		&subCourse.CourseID,
		&subCourse.Title,
		&subCourse.Position,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sub-course not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get sub-course", zap.Error(err), zap.Int("sub_course_id", id))
		return nil, fmt.Errorf("failed to get sub-course: %w", err)
	}
	return subCourse, nil
}

// ListByCourse returns the sub-courses of a course in display order
func (r *subCourseRepository) ListByCourse(ctx context.Context, courseID int) ([]models.SubCourse, error) {
	query := `SELECT id, course_id, title, position FROM sub_courses WHERE course_id = ? ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		r.logger.Error("failed to list sub-courses", zap.Error(err), zap.Int("course_id", courseID))
		return nil, fmt.Errorf("failed to list sub-courses: %w", err)
	}
	defer rows.Close()

	subCourses := make([]models.SubCourse, 0)
	for rows.Next() {
		var s models.SubCourse
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Title, &s.Position); err != nil {
			r.logger.Error("failed to scan sub-course", zap.Error(err))
			return nil, fmt.Errorf("failed to scan sub-course: %w", err)
		}
		subCourses = append(subCourses, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sub-courses: %w", err)
	}
	return subCourses, nil
}

// Update stores title and position of a sub-course
func (r *subCourseRepository) Update(ctx context.Context, subCourse *models.SubCourse) error {
	query := `UPDATE sub_courses SET title = ?, position = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, subCourse.Title, subCourse.Position, subCourse.ID)
	if err != nil {
		r.logger.Error("failed to update sub-course", zap.Error(err), zap.Int("sub_course_id", subCourse.ID))
		return fmt.Errorf("failed to update sub-course: %w", err)
	}
	return requireAffected(r.logger, result, "sub-course")
}

// Delete removes a sub-course; its lessons stay in the course without a section
func (r *subCourseRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sub_courses WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("failed to delete sub-course", zap.Error(err), zap.Int("sub_course_id", id))
		return fmt.Errorf("failed to delete sub-course: %w", err)
	}
	return requireAffected(r.logger, result, "sub-course")
}
