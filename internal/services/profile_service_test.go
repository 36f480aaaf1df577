package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlinecourse/backend/internal/models"
)

func strPtr(v string) *string { return &v }

func TestProfileService_GetProfile(t *testing.T) {
	users := &mockUserRepository{user: &models.User{ID: 9, Username: "student"}}
	svc := NewProfileService(users, &mockEnrollmentRepository{courseIDs: []int{1, 3}}, &mockImageUploader{}, zap.NewNop())

	profile, err := svc.GetProfile(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, "student", profile.Username)
	assert.Equal(t, []int{1, 3}, profile.EnrolledCourseIDs)

	svc = NewProfileService(users, &mockEnrollmentRepository{}, &mockImageUploader{}, zap.NewNop())
	profile, err = svc.GetProfile(context.Background(), 9)
	require.NoError(t, err)
	assert.NotNil(t, profile.EnrolledCourseIDs)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name           string
		req            *models.UpdateProfileRequest
		avatar         *Upload
		taken          map[string]bool
		uploadErr      error
		expectedErr    error
		expectedName   string
		expectedAvatar string
	}{
		{
			name:         "rename",
			req:          &models.UpdateProfileRequest{Username: strPtr(" newname ")},
			expectedName: "newname",
		},
		{
			name:         "same username skips the uniqueness check",
			req:          &models.UpdateProfileRequest{Username: strPtr("student")},
			taken:        map[string]bool{"student": true},
			expectedName: "student",
		},
		{
			name:        "username taken",
			req:         &models.UpdateProfileRequest{Username: strPtr("taken")},
			taken:       map[string]bool{"taken": true},
			expectedErr: models.ErrUsernameTaken,
		},
		{
			name:           "avatar upload",
			req:            &models.UpdateProfileRequest{Phone: strPtr("99112233")},
			avatar:         &Upload{Data: strings.NewReader("png"), Extension: ".png", ContentType: "image/png"},
			expectedName:   "student",
			expectedAvatar: "https://cdn.example.com/avatars/file.png",
		},
		{
			name:        "avatar upload fails",
			req:         &models.UpdateProfileRequest{},
			avatar:      &Upload{Data: strings.NewReader("png"), Extension: ".png", ContentType: "image/png"},
			uploadErr:   errors.New("storage down"),
			expectedErr: errors.New("storage down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUserRepository{
				user:              &models.User{ID: 9, Username: "student"},
				existingUsernames: tt.taken,
			}
			images := &mockImageUploader{enabled: true, uploadErr: tt.uploadErr}
			svc := NewProfileService(users, &mockEnrollmentRepository{}, images, zap.NewNop())

			user, err := svc.UpdateProfile(context.Background(), 9, tt.req, tt.avatar)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr.Error())
				assert.Nil(t, users.updated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, user.Username)
			assert.Equal(t, tt.expectedAvatar, user.Avatar)
			assert.Same(t, user, users.updated)
		})
	}
}

func TestProfileService_ChangePassword(t *testing.T) {
	tests := []struct {
		name        string
		user        *models.User
		current     string
		expectedErr error
	}{
		{
			name:    "correct current password",
			user:    &models.User{ID: 9, PasswordHash: hashPassword(t, "oldpassword")},
			current: "oldpassword",
		},
		{
			name:        "wrong current password",
			user:        &models.User{ID: 9, PasswordHash: hashPassword(t, "oldpassword")},
			current:     "guess",
			expectedErr: models.ErrInvalidCredentials,
		},
		{
			name: "oauth account sets its first password",
			user: &models.User{ID: 9, OAuthProvider: "google"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUserRepository{user: tt.user}
			svc := NewProfileService(users, &mockEnrollmentRepository{}, &mockImageUploader{}, zap.NewNop())

			err := svc.ChangePassword(context.Background(), 9, &models.ChangePasswordRequest{
				CurrentPassword: tt.current,
				NewPassword:     "newpassword",
			})

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Empty(t, users.password)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.password), []byte("newpassword")))
		})
	}
}
