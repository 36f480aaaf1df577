package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/onlinecourse/backend/internal/auth/service"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/storage"
)

const (
	providerGoogle    = "google"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	maxUsernameTries  = 5
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// OAuthUserRepository is the interface that wraps methods for users table data access used by OAuth login
type OAuthUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByOAuth(ctx context.Context, provider, subject string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	LinkOAuth(ctx context.Context, id int, provider, subject string) error
}

// OAuthStateStore keeps the state nonce between the redirect and the callback
type OAuthStateStore interface {
	Save(ctx context.Context, state, value string) error
	Consume(ctx context.Context, state string) (string, error)
}

// GoogleConfig holds the Google OAuth client settings
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// oauthService implements Google login
type oauthService struct {
	config         *oauth2.Config
	userInfoURL    string
	userRepo       OAuthUserRepository
	userTokenRepo  UserTokenRepository
	states         OAuthStateStore
	tokenGenerator *service.TokenGenerator
	notifier       WelcomeNotifier
	logger         *zap.Logger
}

// NewOAuthService creates a new Google OAuth service
func NewOAuthService(
	cfg GoogleConfig,
	userRepo OAuthUserRepository,
	userTokenRepo UserTokenRepository,
	states OAuthStateStore,
	tokenGenerator *service.TokenGenerator,
	notifier WelcomeNotifier,
	logger *zap.Logger,
) *oauthService {
	return &oauthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL:    googleUserInfoURL,
		userRepo:       userRepo,
		userTokenRepo:  userTokenRepo,
		states:         states,
		tokenGenerator: tokenGenerator,
		notifier:       notifier,
		logger:         logger,
	}
}

// Enabled reports whether Google login is configured
func (s *oauthService) Enabled() bool {
	return s.config.ClientID != "" && s.config.ClientSecret != ""
}

// LoginURL returns the Google consent URL and the state nonce bound to it
func (s *oauthService) LoginURL(ctx context.Context) (string, string, error) {
	if !s.Enabled() {
		return "", "", models.ErrProviderNotEnabled
	}

	state := uuid.NewString()
	if err := s.states.Save(ctx, state, providerGoogle); err != nil {
		return "", "", err
	}

	return s.config.AuthCodeURL(state, oauth2.AccessTypeOnline), state, nil
}

// HandleCallback exchanges the authorization code, finds or creates the user and issues a token pair
func (s *oauthService) HandleCallback(ctx context.Context, state, code string) (*models.User, string, string, error) {
	if state == "" || code == "" {
		return nil, "", "", models.ErrInvalidToken
	}

	if _, err := s.states.Consume(ctx, state); err != nil {
		if errors.Is(err, storage.ErrStateNotFound) {
			return nil, "", "", models.ErrInvalidToken
		}
		return nil, "", "", err
	}

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("google code exchange failed", zap.Error(err))
		return nil, "", "", models.ErrInvalidToken
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, "", "", err
	}

	user, err := s.findOrCreateUser(ctx, info)
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := generateAndSaveTokens(ctx, s.tokenGenerator, s.userTokenRepo, user.ID, user.Role)
	if err != nil {
		return nil, "", "", err
	}
	return user, accessToken, refreshToken, nil
}

func (s *oauthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode google userinfo: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("google userinfo is missing subject or email")
	}
	return &info, nil
}

// findOrCreateUser resolves the Google identity to a user: by linked subject first, then by
// verified email (linking the account), otherwise a new student is created
func (s *oauthService) findOrCreateUser(ctx context.Context, info *googleUserInfo) (*models.User, error) {
	user, err := s.userRepo.GetByOAuth(ctx, providerGoogle, info.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if info.EmailVerified {
		user, err = s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.userRepo.LinkOAuth(ctx, user.ID, providerGoogle, info.Subject); err != nil {
				return nil, err
			}
			user.OAuthProvider = providerGoogle
			user.OAuthSubject = info.Subject
			s.logger.Info("Linked google account", zap.Int("user_id", user.ID))
			return user, nil
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	username, err := s.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		Email:         email,
		Username:      username,
		Role:          models.RoleStudent,
		Avatar:        info.Picture,
		OAuthProvider: providerGoogle,
		OAuthSubject:  info.Subject,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Created user from google login", zap.Int("user_id", user.ID))
	if err := s.notifier.EnqueueWelcomeEmail(ctx, user.ID); err != nil {
		s.logger.Warn("failed to enqueue welcome email", zap.Int("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// availableUsername derives a free username from the local part of an email
func (s *oauthService) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameFromEmail(email)

	candidate := base
	for i := 0; i < maxUsernameTries; i++ {
		exists, err := s.userRepo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return "", fmt.Errorf("failed to find a free username for %s", base)
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := nonAlphanumeric.ReplaceAllString(local, "")
	if len(name) > 40 {
		name = name[:40]
	}
	if len(name) < 3 {
		name = "user" + name
	}
	return name
}
