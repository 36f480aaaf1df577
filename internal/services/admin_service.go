package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
)

// knownSettings lists the keys the admin console may edit
var knownSettings = map[string]bool{
	models.SettingBankName:          true,
	models.SettingBankAccountNumber: true,
	models.SettingBankAccountName:   true,
	models.SettingContactEmail:      true,
}

// AdminUserRepository is the interface that wraps methods for user management
type AdminUserRepository interface {
	// Method GetByID retrieves a user by id.
	GetByID(ctx context.Context, id int) (*models.User, error)
	// Method List returns a page of users and the total number matching the filter.
	List(ctx context.Context, filter models.UserFilter) ([]models.UserListItem, int, error)
	// Method UpdateRole changes the role of a user.
	UpdateRole(ctx context.Context, id int, role models.Role) error
	// Method Delete removes a user together with all data they own.
	Delete(ctx context.Context, id int) error
}

// AdminEnrollmentRepository is the interface that wraps methods for enrollment management
type AdminEnrollmentRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.EnrollmentListItem, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.AdminEnrollmentItem, int, error)
	Grant(ctx context.Context, userID, courseID int) error
	Revoke(ctx context.Context, userID, courseID int) error
}

// PaymentLister returns payment pages
type PaymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListItem, int, error)
}

// SettingsRepository is the interface that wraps methods for site settings
type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, settings map[string]string) error
}

// StatsRepository returns aggregated platform numbers
type StatsRepository interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

// adminService implements user, enrollment, settings and statistics management
type adminService struct {
	userRepo       AdminUserRepository
	courseRepo     CourseReader
	enrollmentRepo AdminEnrollmentRepository
	paymentRepo    PaymentLister
	settingsRepo   SettingsRepository
	statsRepo      StatsRepository
	logger         *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	userRepo AdminUserRepository,
	courseRepo CourseReader,
	enrollmentRepo AdminEnrollmentRepository,
	paymentRepo PaymentLister,
	settingsRepo SettingsRepository,
	statsRepo StatsRepository,
	logger *zap.Logger,
) *adminService {
	return &adminService{
		userRepo:       userRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
		paymentRepo:    paymentRepo,
		settingsRepo:   settingsRepo,
		statsRepo:      statsRepo,
		logger:         logger,
	}
}

// ListUsers returns a page of users with their enrollment counts
func (s *adminService) ListUsers(ctx context.Context, filter models.UserFilter) (*models.ListResponse[models.UserListItem], error) {
	items, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, filter.Page, filter.Count), nil
}

// GetUser returns a user with their enrollments and payment history
func (s *adminService) GetUser(ctx context.Context, id int) (*models.UserDetailResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.enrollmentRepo.ListByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentListItem{}
	}

	paymentItems, _, err := s.paymentRepo.List(ctx, models.PaymentFilter{UserID: id, Page: 1, Count: maxPageSize})
	if err != nil {
		return nil, err
	}
	payments := make([]models.Payment, 0, len(paymentItems))
	for _, item := range paymentItems {
		payments = append(payments, item.Payment)
	}

	return &models.UserDetailResponse{
		User:        *user,
		Enrollments: enrollments,
		Payments:    payments,
	}, nil
}

// UpdateRole changes a user's role. Admins cannot demote themselves.
func (s *adminService) UpdateRole(ctx context.Context, actorID, userID int, role models.Role) error {
	if actorID == userID && role != models.RoleAdmin {
		return fmt.Errorf("cannot demote yourself: %w", models.ErrForbidden)
	}
	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.logger.Info("User role changed", zap.Int("user_id", userID), zap.Int("role", int(role)), zap.Int("actor_id", actorID))
	return nil
}

// DeleteUser removes a user with all of their data. Admins cannot delete themselves.
func (s *adminService) DeleteUser(ctx context.Context, actorID, userID int) error {
	if actorID == userID {
		return fmt.Errorf("cannot delete yourself: %w", models.ErrForbidden)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Int("user_id", userID), zap.Int("actor_id", actorID))
	return nil
}

// ListEnrollments returns a page of enrollments across all users
func (s *adminService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) (*models.ListResponse[models.AdminEnrollmentItem], error) {
	items, total, err := s.enrollmentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, filter.Page, filter.Count), nil
}

// GrantEnrollment enrolls a user into a course without a payment
func (s *adminService) GrantEnrollment(ctx context.Context, req *models.GrantEnrollmentRequest) error {
	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		return err
	}
	if _, err := s.courseRepo.GetByID(ctx, req.CourseID); err != nil {
		return err
	}
	if err := s.enrollmentRepo.Grant(ctx, req.UserID, req.CourseID); err != nil {
		return err
	}
	s.logger.Info("Enrollment granted", zap.Int("user_id", req.UserID), zap.Int("course_id", req.CourseID))
	return nil
}

// RevokeEnrollment removes a user's access to a course along with their progress
func (s *adminService) RevokeEnrollment(ctx context.Context, userID, courseID int) error {
	if err := s.enrollmentRepo.Revoke(ctx, userID, courseID); err != nil {
		return err
	}
	s.logger.Info("Enrollment revoked", zap.Int("user_id", userID), zap.Int("course_id", courseID))
	return nil
}

// GetSettings returns all settings sorted by key
func (s *adminService) GetSettings(ctx context.Context) ([]models.Setting, error) {
	values, err := s.settingsRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	settings := make([]models.Setting, 0, len(values))
	for key, value := range values {
		settings = append(settings, models.Setting{Key: key, Value: value})
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

// UpdateSettings stores the given settings. Unknown keys are rejected.
func (s *adminService) UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) ([]models.Setting, error) {
	for key := range req.Settings {
		if !knownSettings[key] {
			return nil, &FieldError{Field: "settings", Message: fmt.Sprintf("unknown setting %q", key)}
		}
	}
	if err := s.settingsRepo.Upsert(ctx, req.Settings); err != nil {
		return nil, err
	}
	return s.GetSettings(ctx)
}

// Dashboard returns aggregated platform statistics
func (s *adminService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	return s.statsRepo.Dashboard(ctx)
}
