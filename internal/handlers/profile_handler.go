package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
)

// ProfileService is the interface that wraps methods for the current user's profile.
type ProfileService interface {
	// Method GetProfile returns the user with the ids of the courses they are enrolled in.
	GetProfile(ctx context.Context, userID int) (*models.ProfileResponse, error)
	// Method UpdateProfile changes username and phone and optionally replaces the avatar image.
	//
	// "avatar" parameter is nil when no new image was sent.
	// If the username is taken, ErrUsernameTaken will be returned.
	UpdateProfile(ctx context.Context, userID int, req *models.UpdateProfileRequest, avatar *services.Upload) (*models.User, error)
	// Method ChangePassword verifies the current password and stores a new hash.
	//
	// OAuth-only accounts may set a first password without sending the current one.
	ChangePassword(ctx context.Context, userID int, req *models.ChangePasswordRequest) error
}

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	BaseHandler
	profileService ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		profileService: profileService,
	}
}

// RegisterRoutes registers all profile handler routes
// Note: This assumes the router is already scoped to /api/v1
func (h *ProfileHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/profile", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetProfile)
		r.Patch("/", h.UpdateProfile)
		r.Put("/password", h.ChangePassword)
	})
}

// GetProfile handles GET /profile
// @Summary Get profile
// @Description Get the current user's profile with enrolled course ids
// @Tags profile
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.ProfileResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	profile, err := h.profileService.GetProfile(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err, "get profile")
		return
	}

	h.RespondJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PATCH /profile
// @Summary Update profile
// @Description Update username and phone. Send multipart/form-data with a JSON "data" field and an "avatar" file to replace the avatar.
// @Tags profile
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.UpdateProfileRequest false "Profile fields"
// @Param avatar formData file false "Avatar image"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 409 {object} map[string]string "Username taken"
// @Router /profile [patch]
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req models.UpdateProfileRequest
	var avatar *services.Upload

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			h.RespondError(w, http.StatusBadRequest, "failed to parse request")
			return
		}
		if r.FormValue("data") != "" {
			if err := formJSON(r, &req); err != nil {
				h.HandleServiceError(w, r, err, "update profile")
				return
			}
		}
		upload, closer, err := formUpload(r, "avatar")
		if err != nil {
			h.HandleServiceError(w, r, err, "update profile")
			return
		}
		defer closeUpload(closer)
		avatar = upload
	} else if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update profile")
		return
	}

	user, err := h.profileService.UpdateProfile(r.Context(), userID, &req, avatar)
	if err != nil {
		h.HandleServiceError(w, r, err, "update profile")
		return
	}

	h.RespondJSON(w, http.StatusOK, user)
}

// ChangePassword handles PUT /profile/password
// @Summary Change password
// @Tags profile
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string "Password changed"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Wrong current password"
// @Router /profile/password [put]
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req models.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "change password")
		return
	}

	if err := h.profileService.ChangePassword(r.Context(), userID, &req); err != nil {
		h.HandleServiceError(w, r, err, "change password")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
