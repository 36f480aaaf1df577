package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

const courseColumns = `id, slug, title, description, price, category, level, thumbnail_url, is_published, created_at, updated_at`

// courseRepository implements CourseRepository
type courseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *sql.DB, logger *zap.Logger) *courseRepository {
	return &courseRepository{
		db:     db,
		logger: logger,
	}
}

func scanCourse(row rowScanner) (*models.Course, error) {
	course := &models.Course{}
	err := row.Scan(
		&course.ID,
		&course.Slug,
		&course.Title,
		&course.Description,
		&course.Price,
		&course.Category,
		&course.Level,
		&course.ThumbnailURL,
		&course.IsPublished,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// Create inserts a new course
func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	query := `
		INSERT INTO courses (slug, title, description, price, category, level, thumbnail_url, is_published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		course.Slug,
		course.Title,
		course.Description,
		course.Price,
		course.Category,
		course.Level,
		course.ThumbnailURL,
		course.IsPublished,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return models.ErrSlugTaken
		}
		r.logger.Error("failed to create course", zap.Error(err), zap.String("slug", course.Slug))
		return fmt.Errorf("failed to create course: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	course.ID = int(id)
	return nil
}

func (r *courseRepository) getOne(ctx context.Context, where string, arg any) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE ` + where + ` LIMIT 1`

	course, err := scanCourse(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get course", zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// GetByID retrieves a course by id
func (r *courseRepository) GetByID(ctx context.Context, id int) (*models.Course, error) {
	return r.getOne(ctx, `id = ?`, id)
}

// GetBySlug retrieves a course by slug
func (r *courseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return r.getOne(ctx, `slug = ?`, slug)
}

// ExistsBySlug checks whether a slug is taken
func (r *courseRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM courses WHERE slug = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists); err != nil {
		r.logger.Error("failed to check slug existence", zap.Error(err), zap.String("slug", slug))
		return false, fmt.Errorf("failed to check slug existence: %w", err)
	}
	return exists, nil
}

// List returns a page of courses matching the filter, newest first
func (r *courseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if !filter.IncludeUnpublished {
		where = append(where, "c.is_published = TRUE")
	}
	if filter.Category != "" {
		where = append(where, "c.category = ?")
		args = append(args, filter.Category)
	}
	if filter.Level != "" {
		where = append(where, "c.level = ?")
		args = append(args, filter.Level)
	}
	if filter.Search != "" {
		where = append(where, "(c.title LIKE ? OR c.description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM courses c WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count courses", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count courses: %w", err)
	}

	limit, offset := pagination(filter.Page, filter.Count)
	query := `
		SELECT c.id, c.slug, c.title, c.price, c.category, c.level, c.thumbnail_url, c.is_published,
			(SELECT COUNT(*) FROM lessons l WHERE l.course_id = c.id)
		FROM courses c
		WHERE ` + whereClause + `
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("failed to list courses", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.CourseListItem, 0)
	for rows.Next() {
		var c models.CourseListItem
		if err := rows.Scan(
			&c.ID,
			&c.Slug,
			&c.Title,
			&c.Price,
			&c.Category,
			&c.Level,
			&c.ThumbnailURL,
			&c.IsPublished,
			&c.LessonCount,
		); err != nil {
			r.logger.Error("failed to scan course", zap.Error(err))
			return nil, 0, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating courses", zap.Error(err))
		return nil, 0, fmt.Errorf("error iterating courses: %w", err)
	}

	return courses, total, nil
}

// Update stores every editable field of a course
func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	query := `
		UPDATE courses
		SET slug = ?, title = ?, description = ?, price = ?, category = ?, level = ?, thumbnail_url = ?, is_published = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		course.Slug,
		course.Title,
		course.Description,
		course.Price,
		course.Category,
		course.Level,
		course.ThumbnailURL,
		course.IsPublished,
		course.ID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return models.ErrSlugTaken
		}
		r.logger.Error("failed to update course", zap.Error(err), zap.Int("course_id", course.ID))
		return fmt.Errorf("failed to update course: %w", err)
	}

	return requireAffected(r.logger, result, "course")
}

// Delete removes a course; lessons, enrollments and payments cascade
func (r *courseRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("failed to delete course", zap.Error(err), zap.Int("course_id", id))
		return fmt.Errorf("failed to delete course: %w", err)
	}

	return requireAffected(r.logger, result, "course")
}
