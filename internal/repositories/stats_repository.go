package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

// statsRepository implements StatsRepository
type statsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatsRepository creates a new dashboard statistics repository
func NewStatsRepository(db *sql.DB, logger *zap.Logger) *statsRepository {
	return &statsRepository{
		db:     db,
		logger: logger,
	}
}

// Dashboard collects the counters shown on the admin dashboard
func (r *statsRepository) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM courses),
			(SELECT COUNT(*) FROM courses WHERE is_published = TRUE),
			(SELECT COUNT(*) FROM enrollments),
			(SELECT COUNT(*) FROM payments WHERE status = 'completed'),
			(SELECT COUNT(*) FROM payments WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'completed')
	`

	stats := &models.DashboardStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Users,
		&stats.Courses,
		&stats.PublishedCourses,
		&stats.Enrollments,
		&stats.CompletedPayments,
		&stats.PendingPayments,
		&stats.Revenue,
	)
	if err != nil {
		r.logger.Error("failed to get dashboard stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	return stats, nil
}
