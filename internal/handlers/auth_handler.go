package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
)

const (
	refreshTokenCookie = "refresh_token"
	// SessionName is the gorilla/sessions cookie shared by the OAuth flow
	SessionName     = "lms_session"
	sessionStateKey = "oauth_state"
	sessionUserKey  = "user_id"
)

// AuthService is the interface that wraps methods for authentication business logic.
type AuthService interface {
	// Method Register validates uniqueness, creates a student account and returns access and refresh tokens.
	//
	// "req" parameter contains email, username and password, already validated for format.
	//
	// If the email or username is taken or some other error occurs, the error will be returned together with empty strings for access and refresh tokens.
	Register(ctx context.Context, req *models.RegisterRequest) (string, string, error)
	// Method Login checks credentials given by email or username and returns access and refresh tokens.
	//
	// If credentials are wrong or the account has no password, ErrInvalidCredentials will be returned.
	Login(ctx context.Context, req *models.LoginRequest) (string, string, error)
	// Method Refresh rotates a stored refresh token and returns a new token pair.
	//
	// If the refresh token is invalid, expired or unknown, ErrInvalidToken will be returned.
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	// Method Logout deletes the stored refresh token. An empty token is a no-op.
	Logout(ctx context.Context, refreshToken string) error
	// Method Me returns the account of the authenticated user.
	Me(ctx context.Context, userID int) (*models.User, error)
}

// OAuthService is the interface that wraps methods for Google sign in.
type OAuthService interface {
	// Method Enabled reports whether Google credentials are configured.
	Enabled() bool
	// Method LoginURL stores a fresh state nonce and returns the consent page URL together with the nonce.
	LoginURL(ctx context.Context) (string, string, error)
	// Method HandleCallback consumes the state nonce, exchanges the code and returns the signed in user with a token pair.
	//
	// If the state is unknown or the code is rejected, ErrInvalidToken will be returned.
	HandleCallback(ctx context.Context, state, code string) (*models.User, string, string, error)
}

// CookieConfig controls the JWT cookies issued by the auth endpoints
type CookieConfig struct {
	Secure             bool
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	authService         AuthService
	oauthService        OAuthService
	sessions            sessions.Store
	cookies             CookieConfig
	frontendRedirectURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService AuthService,
	oauthService OAuthService,
	sessionStore sessions.Store,
	cookies CookieConfig,
	frontendRedirectURL string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		BaseHandler:         BaseHandler{Logger: logger},
		authService:         authService,
		oauthService:        oauthService,
		sessions:            sessionStore,
		cookies:             cookies,
		frontendRedirectURL: frontendRedirectURL,
	}
}

// RegisterRoutes registers all auth handler routes
// Note: This assumes the router is already scoped to /api/v1
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Get("/google/login", h.GoogleLogin)
		r.Get("/google/callback", h.GoogleCallback)
		r.With(authMiddleware).Get("/me", h.Me)
	})
}

// Register handles POST /auth/register
// @Summary Register a new user
// @Description Register a student account. Tokens are returned in the body and as HTTP-only cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration request"
// @Success 201 {object} models.TokenResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 409 {object} map[string]string "Email or username taken"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "register user")
		return
	}

	accessToken, refreshToken, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "register user")
		return
	}

	h.setTokenCookies(w, accessToken, refreshToken)
	h.RespondJSON(w, http.StatusCreated, models.TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// Login handles POST /auth/login
// @Summary Login user
// @Description Authenticate with email or username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "login user")
		return
	}

	accessToken, refreshToken, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "login user")
		return
	}

	h.setTokenCookies(w, accessToken, refreshToken)
	h.RespondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// Refresh handles POST /auth/refresh
// @Summary Refresh access token
// @Description Rotate the refresh token. The token can be provided in the request body or as a cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest false "Refresh token request (optional if using cookie)"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} map[string]string "Refresh token required"
// @Failure 401 {object} map[string]string "Invalid or expired token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := readRefreshToken(r)
	if refreshToken == "" {
		h.RespondError(w, http.StatusBadRequest, "refresh token required")
		return
	}

	accessToken, newRefreshToken, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.HandleServiceError(w, r, err, "refresh tokens")
		return
	}

	h.setTokenCookies(w, accessToken, newRefreshToken)
	h.RespondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: accessToken, RefreshToken: newRefreshToken})
}

// Logout handles POST /auth/logout
// @Summary Logout user
// @Description Revoke the refresh token and clear auth cookies
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest false "Refresh token request (optional if using cookie)"
// @Success 200 {object} map[string]string "Logged out"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), readRefreshToken(r)); err != nil {
		h.HandleServiceError(w, r, err, "logout user")
		return
	}

	h.clearTokenCookies(w)
	if session, err := h.sessions.Get(r, SessionName); err == nil {
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			h.Logger.Warn("failed to clear session", zap.Error(err))
		}
	}

	h.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// GoogleLogin handles GET /auth/google/login
// @Summary Start Google sign in
// @Description Redirect to the Google consent page
// @Tags auth
// @Success 307 "Redirect to Google"
// @Failure 503 {object} map[string]string "Google sign in is not configured"
// @Router /auth/google/login [get]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	loginURL, state, err := h.oauthService.LoginURL(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "start google login")
		return
	}

	// A decode failure still yields a fresh session
	session, _ := h.sessions.Get(r, SessionName)
	session.Values[sessionStateKey] = state
	if err := session.Save(r, w); err != nil {
		h.HandleServiceError(w, r, err, "save oauth session")
		return
	}

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /auth/google/callback
// @Summary Finish Google sign in
// @Description Exchange the authorization code, sign the user in and redirect to the frontend
// @Tags auth
// @Produce json
// @Param state query string true "State nonce"
// @Param code query string true "Authorization code"
// @Success 200 {object} models.TokenResponse "When no frontend redirect is configured"
// @Success 307 "Redirect to the frontend"
// @Failure 401 {object} map[string]string "Invalid state or code"
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if r.URL.Query().Get("error") != "" || state == "" || code == "" {
		h.RespondError(w, http.StatusUnauthorized, "google sign in was not completed")
		return
	}

	session, _ := h.sessions.Get(r, SessionName)
	expected, _ := session.Values[sessionStateKey].(string)
	if expected == "" || expected != state {
		h.RespondError(w, http.StatusUnauthorized, "oauth state mismatch")
		return
	}

	user, accessToken, refreshToken, err := h.oauthService.HandleCallback(r.Context(), state, code)
	if err != nil {
		h.HandleServiceError(w, r, err, "finish google login")
		return
	}

	delete(session.Values, sessionStateKey)
	session.Values[sessionUserKey] = user.ID
	if err := session.Save(r, w); err != nil {
		h.Logger.Warn("failed to save session", zap.Int("userID", user.ID), zap.Error(err))
	}

	h.setTokenCookies(w, accessToken, refreshToken)
	if h.frontendRedirectURL != "" {
		http.Redirect(w, r, h.frontendRedirectURL, http.StatusTemporaryRedirect)
		return
	}
	h.RespondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// Me handles GET /auth/me
// @Summary Current user
// @Description Return the authenticated account
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "User not found"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err, "get current user")
		return
	}

	h.RespondJSON(w, http.StatusOK, user)
}

// readRefreshToken reads the refresh token from the request body, falling back to the cookie
func readRefreshToken(r *http.Request) string {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// setTokenCookies sets access and refresh tokens as HTTP-only cookies
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, h.tokenCookie(middleware.AccessTokenCookie, accessToken, int(h.cookies.AccessTokenExpiry.Seconds())))
	http.SetCookie(w, h.tokenCookie(refreshTokenCookie, refreshToken, int(h.cookies.RefreshTokenExpiry.Seconds())))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.tokenCookie(middleware.AccessTokenCookie, "", -1))
	http.SetCookie(w, h.tokenCookie(refreshTokenCookie, "", -1))
}

func (h *AuthHandler) tokenCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
