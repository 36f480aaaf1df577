package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlinecourse/backend/internal/models"
)

// ProfileUserRepository is the interface that wraps methods for users table data access used by profiles
type ProfileUserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// EnrolledCoursesReader lists the ids of courses a user owns
type EnrolledCoursesReader interface {
	CourseIDsByUser(ctx context.Context, userID int) ([]int, error)
}

// ImageUploader stores public images
type ImageUploader interface {
	Enabled() bool
	Upload(folder, extension, contentType string, data io.Reader) (string, string, error)
	Delete(path string) error
}

// Upload is an image sent along with a form
type Upload struct {
	Data        io.Reader
	Extension   string
	ContentType string
}

// profileService implements profile management of the current user
type profileService struct {
	userRepo       ProfileUserRepository
	enrollmentRepo EnrolledCoursesReader
	images         ImageUploader
	logger         *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(userRepo ProfileUserRepository, enrollmentRepo EnrolledCoursesReader, images ImageUploader, logger *zap.Logger) *profileService {
	return &profileService{
		userRepo:       userRepo,
		enrollmentRepo: enrollmentRepo,
		images:         images,
		logger:         logger,
	}
}

// GetProfile returns the user with the ids of the courses they own
func (s *profileService) GetProfile(ctx context.Context, userID int) (*models.ProfileResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	courseIDs, err := s.enrollmentRepo.CourseIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if courseIDs == nil {
		courseIDs = []int{}
	}

	return &models.ProfileResponse{User: *user, EnrolledCourseIDs: courseIDs}, nil
}

// UpdateProfile applies a partial update and an optional new avatar
func (s *profileService) UpdateProfile(ctx context.Context, userID int, req *models.UpdateProfileRequest, avatar *Upload) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			exists, err := s.userRepo.ExistsByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, models.ErrUsernameTaken
			}
			user.Username = username
		}
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}

	if avatar != nil {
		_, url, err := s.images.Upload("avatars", avatar.Extension, avatar.ContentType, avatar.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to upload avatar: %w", err)
		}
		user.Avatar = url
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password. Accounts created through OAuth may set a first
// password without the current one.
func (s *profileService) ChangePassword(ctx context.Context, userID int, req *models.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return models.ErrInvalidCredentials
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info("Password changed", zap.Int("user_id", userID))
	return nil
}
