package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
)

type adminFixture struct {
	users       *mockUserRepository
	courses     *mockCourseRepository
	enrollments *mockEnrollmentRepository
	payments    *mockPaymentRepository
	settings    *mockSettingsRepository
	stats       *mockStatsRepository
}

func newAdminFixture() *adminFixture {
	return &adminFixture{
		users:       &mockUserRepository{user: &models.User{ID: 9, Email: "student@example.com"}},
		courses:     &mockCourseRepository{course: &models.Course{ID: 1, Title: "Go Basics"}},
		enrollments: &mockEnrollmentRepository{},
		payments:    &mockPaymentRepository{},
		settings:    &mockSettingsRepository{values: map[string]string{models.SettingBankName: "Khan Bank"}},
		stats:       &mockStatsRepository{stats: &models.DashboardStats{Users: 3, Revenue: 150000}},
	}
}

func (f *adminFixture) service() *adminService {
	return NewAdminService(f.users, f.courses, f.enrollments, f.payments, f.settings, f.stats, zap.NewNop())
}

func TestAdminService_GetUser(t *testing.T) {
	f := newAdminFixture()
	f.enrollments.byUser = []models.EnrollmentListItem{{CourseID: 1, Title: "Go Basics"}}
	f.payments.listItems = []models.PaymentListItem{
		{Payment: models.Payment{ID: 7, UserID: 9}, CourseTitle: "Go Basics"},
	}

	detail, err := f.service().GetUser(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, "student@example.com", detail.Email)
	assert.Len(t, detail.Enrollments, 1)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, 7, detail.Payments[0].ID)
	assert.Equal(t, 9, f.payments.listFilter.UserID)

	_, err = f.service().GetUser(context.Background(), 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdminService_UpdateRole(t *testing.T) {
	tests := []struct {
		name        string
		actorID     int
		userID      int
		role        models.Role
		expectedErr error
	}{
		{name: "promote student", actorID: 1, userID: 9, role: models.RoleAdmin},
		{name: "demote another admin", actorID: 1, userID: 2, role: models.RoleStudent},
		{name: "cannot demote yourself", actorID: 1, userID: 1, role: models.RoleStudent, expectedErr: models.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()

			err := f.service().UpdateRole(context.Background(), tt.actorID, tt.userID, tt.role)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Zero(t, f.users.roleSet)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, f.users.roleSet)
		})
	}
}

func TestAdminService_DeleteUser(t *testing.T) {
	f := newAdminFixture()

	assert.ErrorIs(t, f.service().DeleteUser(context.Background(), 1, 1), models.ErrForbidden)
	require.NoError(t, f.service().DeleteUser(context.Background(), 1, 9))
	assert.Equal(t, 9, f.users.deletedID)
}

func TestAdminService_Enrollments(t *testing.T) {
	f := newAdminFixture()
	svc := f.service()
	ctx := context.Background()

	require.NoError(t, svc.GrantEnrollment(ctx, &models.GrantEnrollmentRequest{UserID: 9, CourseID: 1}))
	assert.Equal(t, [][2]int{{9, 1}}, f.enrollments.granted)

	assert.ErrorIs(t, svc.GrantEnrollment(ctx, &models.GrantEnrollmentRequest{UserID: 10, CourseID: 1}), models.ErrNotFound)
	assert.ErrorIs(t, svc.GrantEnrollment(ctx, &models.GrantEnrollmentRequest{UserID: 9, CourseID: 2}), models.ErrNotFound)

	f.enrollments.grantErr = models.ErrAlreadyEnrolled
	assert.ErrorIs(t, svc.GrantEnrollment(ctx, &models.GrantEnrollmentRequest{UserID: 9, CourseID: 1}), models.ErrAlreadyEnrolled)

	require.NoError(t, svc.RevokeEnrollment(ctx, 9, 1))
	assert.Equal(t, [][2]int{{9, 1}}, f.enrollments.revoked)

	resp, err := svc.ListEnrollments(ctx, models.EnrollmentFilter{CourseID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, f.enrollments.listFilter.CourseID)
	assert.NotNil(t, resp.Items)
}

func TestAdminService_Settings(t *testing.T) {
	f := newAdminFixture()
	svc := f.service()
	ctx := context.Background()

	settings, err := svc.UpdateSettings(ctx, &models.UpdateSettingsRequest{Settings: map[string]string{
		models.SettingBankAccountNumber: "5000123456",
	}})
	require.NoError(t, err)
	assert.Equal(t, []models.Setting{
		{Key: models.SettingBankAccountNumber, Value: "5000123456"},
		{Key: models.SettingBankName, Value: "Khan Bank"},
	}, settings)

	_, err = svc.UpdateSettings(ctx, &models.UpdateSettingsRequest{Settings: map[string]string{"unknown": "x"}})
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "settings", fieldErr.Field)
}

func TestAdminService_Dashboard(t *testing.T) {
	f := newAdminFixture()

	stats, err := f.service().Dashboard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, int64(150000), stats.Revenue)
}

func TestAdminService_ListUsers(t *testing.T) {
	f := newAdminFixture()
	f.users.listItems = []models.UserListItem{{ID: 9}}
	f.users.listTotal = 1

	resp, err := f.service().ListUsers(context.Background(), models.UserFilter{Search: "stu", Page: 1, Count: 20})

	require.NoError(t, err)
	assert.Equal(t, "stu", f.users.listFilter.Search)
	assert.Equal(t, 1, resp.Total)
}
