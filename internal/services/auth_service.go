package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlinecourse/backend/internal/auth/service"
	"github.com/onlinecourse/backend/internal/models"
)

// UserRepository is the interface that wraps methods for users table data access used by authentication
type UserRepository interface {
	// Method Create inserts a new user.
	//
	// Duplicate email or username produce models.ErrEmailTaken or models.ErrUsernameTaken.
	Create(ctx context.Context, user *models.User) error
	// Method GetByID retrieves a user by ID.
	//
	// If the user does not exist, models.ErrNotFound is returned.
	GetByID(ctx context.Context, id int) (*models.User, error)
	// Method GetByEmailOrUsername retrieves a user by email or username.
	GetByEmailOrUsername(ctx context.Context, login string) (*models.User, error)
	// Method ExistsByEmail checks if a user with such email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Method ExistsByUsername checks if a user with such username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// UserTokenRepository is the interface that wraps methods for user_tokens table data access
type UserTokenRepository interface {
	// Method Create stores a refresh token.
	Create(ctx context.Context, userToken *models.UserToken) error
	// Method GetByToken retrieves a stored refresh token.
	//
	// If the token is unknown, models.ErrNotFound is returned.
	GetByToken(ctx context.Context, token string) (*models.UserToken, error)
	// Method UpdateToken replaces a refresh token with its rotated value.
	UpdateToken(ctx context.Context, oldToken, newToken string, userID int) error
	// Method DeleteByToken deletes a refresh token. Unknown tokens are not an error.
	DeleteByToken(ctx context.Context, token string) error
}

// WelcomeNotifier schedules the welcome email
type WelcomeNotifier interface {
	EnqueueWelcomeEmail(ctx context.Context, userID int) error
}

// authService implements credential authentication and refresh token rotation
type authService struct {
	userRepo       UserRepository
	userTokenRepo  UserTokenRepository
	tokenGenerator *service.TokenGenerator
	notifier       WelcomeNotifier
	logger         *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo UserRepository,
	userTokenRepo UserTokenRepository,
	tokenGenerator *service.TokenGenerator,
	notifier WelcomeNotifier,
	logger *zap.Logger,
) *authService {
	return &authService{
		userRepo:       userRepo,
		userTokenRepo:  userTokenRepo,
		tokenGenerator: tokenGenerator,
		notifier:       notifier,
		logger:         logger,
	}
}

// Register creates a student account and returns its first token pair
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (string, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	emailExists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("failed to check email: %w", err)
	}
	if emailExists {
		return "", "", models.ErrEmailTaken
	}

	usernameExists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("failed to check username: %w", err)
	}
	if usernameExists {
		return "", "", models.ErrUsernameTaken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(passwordHash),
		Role:         models.RoleStudent,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", "", err
	}

	if err := s.notifier.EnqueueWelcomeEmail(ctx, user.ID); err != nil {
		s.logger.Warn("failed to enqueue welcome email", zap.Int("user_id", user.ID), zap.Error(err))
	}

	return generateAndSaveTokens(ctx, s.tokenGenerator, s.userTokenRepo, user.ID, user.Role)
}

// Login authenticates a user by email or username
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (string, string, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return "", "", models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmailOrUsername(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", "", models.ErrInvalidCredentials
		}
		return "", "", err
	}

	// OAuth-only accounts have no password to compare against
	if !user.HasPassword() {
		return "", "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", "", models.ErrInvalidCredentials
	}

	return generateAndSaveTokens(ctx, s.tokenGenerator, s.userTokenRepo, user.ID, user.Role)
}

// Refresh rotates a refresh token and issues a new token pair
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", "", models.ErrInvalidToken
	}

	if err := s.tokenGenerator.ValidateRefreshToken(refreshToken); err != nil {
		// Remove the token if it is stored
		if delErr := s.userTokenRepo.DeleteByToken(ctx, refreshToken); delErr != nil {
			s.logger.Warn("failed to delete invalid refresh token", zap.Error(delErr))
		}
		return "", "", models.ErrInvalidToken
	}

	userToken, err := s.userTokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", "", models.ErrInvalidToken
		}
		return "", "", err
	}

	user, err := s.userRepo.GetByID(ctx, userToken.UserID)
	if err != nil {
		return "", "", err
	}

	accessToken, newRefreshToken, err := s.tokenGenerator.GenerateTokens(user.ID, int(user.Role))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.userTokenRepo.UpdateToken(ctx, refreshToken, newRefreshToken, user.ID); err != nil {
		// Rotated by a concurrent refresh
		if errors.Is(err, models.ErrNotFound) {
			return "", "", models.ErrInvalidToken
		}
		return "", "", err
	}

	return accessToken, newRefreshToken, nil
}

// Logout forgets a refresh token
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return s.userTokenRepo.DeleteByToken(ctx, refreshToken)
}

// Me returns the authenticated user
func (s *authService) Me(ctx context.Context, userID int) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// generateAndSaveTokens issues a token pair and stores the refresh token
func generateAndSaveTokens(ctx context.Context, tokenGenerator *service.TokenGenerator,
	userTokenRepo UserTokenRepository, userID int, role models.Role) (string, string, error) {
	accessToken, refreshToken, err := tokenGenerator.GenerateTokens(userID, int(role))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	userToken := &models.UserToken{
		UserID: userID,
		Token:  refreshToken,
	}
	if err := userTokenRepo.Create(ctx, userToken); err != nil {
		return "", "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}
