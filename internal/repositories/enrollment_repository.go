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

// enrollmentRepository implements EnrollmentRepository
type enrollmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB, logger *zap.Logger) *enrollmentRepository {
	return &enrollmentRepository{
		db:     db,
		logger: logger,
	}
}

// grantEnrollmentTx inserts the enrollment and the user's course reference.
// Both statements are no-ops when the rows already exist.
func grantEnrollmentTx(ctx context.Context, tx *sql.Tx, userID, courseID int, paymentID *int) error {
	enrollQuery := `
		INSERT INTO enrollments (user_id, course_id, payment_id)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payment_id = COALESCE(payment_id, VALUES(payment_id))
	`
	if _, err := tx.ExecContext(ctx, enrollQuery, userID, courseID, nullInt(paymentID)); err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}

	courseQuery := `INSERT IGNORE INTO user_courses (user_id, course_id) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, courseQuery, userID, courseID); err != nil {
		return fmt.Errorf("failed to insert user course: %w", err)
	}
	return nil
}

// Grant enrolls a user in a course without a payment
func (r *enrollmentRepository) Grant(ctx context.Context, userID, courseID int) error {
	return withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		if err := grantEnrollmentTx(ctx, tx, userID, courseID, nil); err != nil {
			r.logger.Error("failed to grant enrollment", zap.Error(err),
				zap.Int("user_id", userID),
				zap.Int("course_id", courseID),
			)
			return err
		}
		return nil
	})
}

// Get retrieves the enrollment of a user in a course
func (r *enrollmentRepository) Get(ctx context.Context, userID, courseID int) (*models.Enrollment, error) {
	query := `
		SELECT id, user_id, course_id, payment_id, progress, created_at
		FROM enrollments
		WHERE user_id = ? AND course_id = ?
	`

	enrollment := &models.Enrollment{}
	var paymentID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(
		&enrollment.ID,
		&enrollment.UserID,
		&enrollment.CourseID,
		&paymentID,
		&enrollment.Progress,
		&enrollment.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrollment not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get enrollment", zap.Error(err), zap.Int("user_id", userID), zap.Int("course_id", courseID))
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	enrollment.PaymentID = intPtr(paymentID)
	return enrollment, nil
}

// Exists checks whether a user is enrolled in a course
func (r *enrollmentRepository) Exists(ctx context.Context, userID, courseID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = ? AND course_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(&exists); err != nil {
		r.logger.Error("failed to check enrollment", zap.Error(err), zap.Int("user_id", userID), zap.Int("course_id", courseID))
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

// CourseIDsByUser returns the ids of the courses in a user's list
func (r *enrollmentRepository) CourseIDsByUser(ctx context.Context, userID int) ([]int, error) {
	query := `SELECT course_id FROM user_courses WHERE user_id = ? ORDER BY course_id`
	return r.queryIDs(ctx, query, userID)
}

// ListByUser returns a user's enrolled courses with progress and completed lessons
func (r *enrollmentRepository) ListByUser(ctx context.Context, userID int) ([]models.EnrollmentListItem, error) {
	query := `
		SELECT c.id, c.slug, c.title, c.thumbnail_url, e.progress, e.created_at
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = ?
		ORDER BY e.created_at DESC, e.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list enrollments", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	items := make([]models.EnrollmentListItem, 0)
	for rows.Next() {
		item := models.EnrollmentListItem{CompletedLessons: []int{}}
		if err := rows.Scan(&item.CourseID, &item.Slug, &item.Title, &item.ThumbnailURL, &item.Progress, &item.EnrolledAt); err != nil {
			r.logger.Error("failed to scan enrollment", zap.Error(err))
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	completed, err := r.completedByCourse(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if lessons, ok := completed[items[i].CourseID]; ok {
			items[i].CompletedLessons = lessons
		}
	}

	return items, nil
}

func (r *enrollmentRepository) completedByCourse(ctx context.Context, userID int) (map[int][]int, error) {
	query := `SELECT course_id, lesson_id FROM lesson_completions WHERE user_id = ? ORDER BY course_id, lesson_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list lesson completions", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to list lesson completions: %w", err)
	}
	defer rows.Close()

	completed := make(map[int][]int)
	for rows.Next() {
		var courseID, lessonID int
		if err := rows.Scan(&courseID, &lessonID); err != nil {
			return nil, fmt.Errorf("failed to scan lesson completion: %w", err)
		}
		completed[courseID] = append(completed[courseID], lessonID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson completions: %w", err)
	}
	return completed, nil
}

// CompletedLessons returns the ids of the lessons a user finished in a course
func (r *enrollmentRepository) CompletedLessons(ctx context.Context, userID, courseID int) ([]int, error) {
	query := `SELECT lesson_id FROM lesson_completions WHERE user_id = ? AND course_id = ? ORDER BY lesson_id`
	return r.queryIDs(ctx, query, userID, courseID)
}

func (r *enrollmentRepository) queryIDs(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query ids", zap.Error(err))
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}

// SetLessonCompleted marks or unmarks a lesson and recomputes the enrollment progress.
// It returns the new progress and the completed lesson ids.
func (r *enrollmentRepository) SetLessonCompleted(ctx context.Context, userID, courseID, lessonID int, completed bool) (int, []int, error) {
	var progress int
	completedLessons := make([]int, 0)

	err := withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		var query string
		var args []any
		if completed {
			query = `INSERT IGNORE INTO lesson_completions (user_id, course_id, lesson_id) VALUES (?, ?, ?)`
			args = []any{userID, courseID, lessonID}
		} else {
			query = `DELETE FROM lesson_completions WHERE user_id = ? AND lesson_id = ?`
			args = []any{userID, lessonID}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("failed to update lesson completion", zap.Error(err),
				zap.Int("user_id", userID),
				zap.Int("lesson_id", lessonID),
			)
			return fmt.Errorf("failed to update lesson completion: %w", err)
		}

		var total int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id = ?`, courseID).Scan(&total); err != nil {
			return fmt.Errorf("failed to count lessons: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT lesson_id FROM lesson_completions WHERE user_id = ? AND course_id = ? ORDER BY lesson_id`,
			userID, courseID,
		)
		if err != nil {
			return fmt.Errorf("failed to list lesson completions: %w", err)
		}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan lesson completion: %w", err)
			}
			completedLessons = append(completedLessons, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating lesson completions: %w", err)
		}

		progress = models.CalculateProgress(len(completedLessons), total)
		if _, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET progress = ? WHERE user_id = ? AND course_id = ?`,
			progress, userID, courseID,
		); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	return progress, completedLessons, nil
}

// List returns a page of enrollments for the admin console
func (r *enrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.AdminEnrollmentItem, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if filter.UserID != 0 {
		where = append(where, "e.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CourseID != 0 {
		where = append(where, "e.course_id = ?")
		args = append(args, filter.CourseID)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments e WHERE `+whereClause, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count enrollments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	limit, offset := pagination(filter.Page, filter.Count)
	query := `
		SELECT e.id, e.user_id, e.course_id, e.payment_id, e.progress, e.created_at, u.email, c.title
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		JOIN courses c ON c.id = e.course_id
		WHERE ` + whereClause + `
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("failed to list enrollments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	items := make([]models.AdminEnrollmentItem, 0)
	for rows.Next() {
		var item models.AdminEnrollmentItem
		var paymentID sql.NullInt64
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.CourseID,
			&paymentID,
			&item.Progress,
			&item.CreatedAt,
			&item.UserEmail,
			&item.CourseTitle,
		); err != nil {
			r.logger.Error("failed to scan enrollment", zap.Error(err))
			return nil, 0, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		item.PaymentID = intPtr(paymentID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return items, total, nil
}

// Revoke removes an enrollment with the user's course reference and lesson progress
func (r *enrollmentRepository) Revoke(ctx context.Context, userID, courseID int) error {
	return withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE user_id = ? AND course_id = ?`, userID, courseID)
		if err != nil {
			r.logger.Error("failed to revoke enrollment", zap.Error(err), zap.Int("user_id", userID), zap.Int("course_id", courseID))
			return fmt.Errorf("failed to revoke enrollment: %w", err)
		}
		if err := requireAffected(r.logger, result, "enrollment"); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_courses WHERE user_id = ? AND course_id = ?`, userID, courseID); err != nil {
			return fmt.Errorf("failed to delete user course: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_completions WHERE user_id = ? AND course_id = ?`, userID, courseID); err != nil {
			return fmt.Errorf("failed to delete lesson completions: %w", err)
		}
		return nil
	})
}
